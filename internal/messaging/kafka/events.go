package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Topics.
const (
	TopicOrderEvents     = "shop.order-events"
	TopicDeadLetterQueue = "shop.order-events.dlq"
)

// Заголовки сообщений с событиями.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderAggregateType = "x-aggregate-type"
)

// Envelope задаёт формат сообщения в topic событий заказов.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// Key возвращает ключ партиционирования: события одного заказа идут по порядку.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// DecodeEnvelope разбирает сообщение и проверяет обязательные поля.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.EventType == "" {
		return Envelope{}, errors.New("envelope has no event_type")
	}
	if len(envelope.Payload) == 0 {
		return Envelope{}, errors.New("envelope has no payload")
	}
	return envelope, nil
}
