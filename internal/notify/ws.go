package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

var ErrConnClosed = errors.New("connection closed")

// WSConn is a Conn backed by a websocket. Writes go through a single writer goroutine.
type WSConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) Push(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case c.send <- b:
		// select memilih acak kalau dua case siap; pesan di buffer koneksi tertutup tidak akan ditulis
		select {
		case <-c.done:
			return ErrConnClosed
		default:
			return nil
		}
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WSConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

type clientMessage struct {
	Event  string `json:"event"`
	UserID int64  `json:"user_id"`
}

// WSServer upgrades authenticated requests and keeps the registry in sync with
// the connections it owns.
type WSServer struct {
	registry *Registry
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSServer(reg *Registry, allowedOrigins []string, log *zap.Logger) *WSServer {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSServer{
		registry: reg,
		log:      log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Serve blocks for the lifetime of the connection.
func (s *WSServer) Serve(w http.ResponseWriter, r *http.Request, userID int64) error {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err // upgrader sudah menulis response error
	}
	c := &WSConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	s.registry.Register(userID, c)
	s.log.Info("user connected", zap.Int64("user_id", userID), zap.String("conn_id", c.id))

	go s.writePump(c)
	s.readPump(c, userID)

	for _, uid := range s.registry.Remove(c) {
		s.log.Info("user disconnected", zap.Int64("user_id", uid), zap.String("conn_id", c.id))
	}
	c.close()
	return nil
}

func (s *WSServer) readPump(c *WSConn, userID int64) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		// klien lama mengirim register_user; hanya untuk user yang sudah terautentikasi
		if msg.Event == "register_user" && msg.UserID == userID {
			s.registry.Register(userID, c)
		}
	}
}

func (s *WSServer) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
