package orders

import "strconv"

const (
	TopicOrderEvents   = "sales.order.events"
	TopicNotifications = "sales.notifications"
)

// Partition key = order id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }

// ReceiverKey keeps notifications for one user on one partition.
func ReceiverKey(userID int64) []byte { return []byte("user:" + strconv.FormatInt(userID, 10)) }
