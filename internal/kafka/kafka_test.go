package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	OrderID int64 `json:"order_id"`
}

func TestUnwrapPayload(t *testing.T) {
	raw := json.RawMessage(MustMarshal(payload{OrderID: 12}))
	p, err := UnwrapPayload[payload](raw)
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.OrderID)

	_, err = UnwrapPayload[payload](json.RawMessage(`{"order_id":"x"}`))
	assert.ErrorContains(t, err, "decode payload")
}

func TestUnmarshalEnvelope_Invalid(t *testing.T) {
	var out map[string]any
	assert.Error(t, UnmarshalEnvelope([]byte("not json"), &out))
}

func TestProducer_PublishNeverBlocks(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "t", 1, nil)

	p.Publish([]byte("k"), []byte("1"))
	p.Publish([]byte("k"), []byte("2")) // inbox full: dropped
	assert.Len(t, p.inbox, 1)

	p.Close()
	p.Close()
	assert.NotPanics(t, func() { p.Publish([]byte("k"), []byte("3")) })
}
