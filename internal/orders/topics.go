package orders

import "strconv"

const TopicOrderEvents = "store.order.events"

// CorrelationID is the remote order id, or "user:<id>" for events that
// happen before any order exists.
func CorrelationID(orderID, userID int64) string {
	if orderID != 0 {
		return strconv.FormatInt(orderID, 10)
	}
	return "user:" + strconv.FormatInt(userID, 10)
}

// Partition key = correlation id, so all events of one order keep their order.
func PartitionKey(correlationID string) []byte { return []byte(correlationID) }
