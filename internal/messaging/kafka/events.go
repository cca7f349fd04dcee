// Package kafka публикует события заказов storefront в Kafka.
package kafka

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers сообщений outbox.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderOriginalTopic = "x-original-topic"
	HeaderReplayedFrom  = "x-replayed-from"
)
