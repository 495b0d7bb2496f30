package events

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicStockLow           = "product.stock.low"
	TopicReviewCreated      = "review.created"
	TopicPayoutProcessed    = "payout.processed"
)

// Topics lists every topic the notifier subscribes to.
var Topics = []string{
	TopicOrderCreated,
	TopicOrderStatusChanged,
	TopicStockLow,
	TopicReviewCreated,
	TopicPayoutProcessed,
}

// Partition key = correlation id, so every event of one order (or product)
// keeps its order on the partition.
func PartitionKey(id string) []byte { return []byte(id) }
