package domain

import "time"

// Типы событий жизненного цикла заказа.
const (
	TimelineCartOpened  = "cart_opened"
	TimelineItemAdded   = "item_added"
	TimelineItemRemoved = "item_removed"
	TimelinePlaced      = "placed"
	TimelineCancelled   = "cancelled"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
