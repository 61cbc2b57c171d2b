package domain

import "time"

// Типы событий, которые движок корзины кладёт в transactional outbox.
const (
	EventCartItemAdded   = "cart.item_added"
	EventCartItemRemoved = "cart.item_removed"
	EventOrderPlaced     = "order.placed"
	EventOrderCancelled  = "order.cancelled"
)

// AggregateOrder — тип агрегата для событий заказа.
const AggregateOrder = "order"

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// StockChange описывает изменение остатка товара в составе события.
type StockChange struct {
	ProductID string `json:"product_id"`
	Delta     int32  `json:"delta"`
}

// OrderEvent: полезная нагрузка событий заказа в outbox.
type OrderEvent struct {
	OrderID     string        `json:"order_id"`
	CustomerID  string        `json:"customer_id"`
	Status      OrderStatus   `json:"status"`
	AmountMinor int64         `json:"amount_minor"`
	ItemCount   int           `json:"item_count"`
	Stock       []StockChange `json:"stock,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}
