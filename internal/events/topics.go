package events

// Topic constants for domain events emitted by the service.
const (
	TopicOrderPlaced        = "order.placed"
	TopicPromotionExhausted = "promotion.exhausted"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{TopicOrderPlaced, TopicPromotionExhausted}
}
