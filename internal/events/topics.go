package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderPlaced = "order.placed"
	TopicCartCleared = "cart.cleared"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderPlaced,
		TopicCartCleared,
	}
}
