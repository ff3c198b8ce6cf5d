package booking

const (
	TopicOrderLifecycle = "rental.order.lifecycle"
	TopicInvoiceIssued  = "rental.invoice.issued"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
