package domain

import (
	"math"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusInProgress — корзина: клиент добавляет и удаляет позиции.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusPlaced — заказ оформлен, остатки остаются списанными.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusCancelled — заказ отменён, остатки возвращены на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusInProgress, OrderStatusPlaced, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPlaced || s == OrderStatusCancelled
}

// CanTransitionTo проверяет переход по автомату in_progress -> {placed, cancelled}.
// В in_progress заказ попадает только при создании.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s != OrderStatusInProgress {
		return false
	}
	return next == OrderStatusPlaced || next == OrderStatusCancelled
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID        string
	ProductID string
	// ProductName и PriceMinor фиксируются в момент добавления и не следуют за каталогом.
	ProductName string
	PriceMinor  int64
	Qty         int32
	CreatedAt   time.Time
}

// LineTotal возвращает стоимость позиции.
func (i OrderItem) LineTotal() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          string
	CustomerID  string
	Status      OrderStatus
	AmountMinor int64
	Items       []OrderItem
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewCart открывает пустой заказ в статусе in_progress.
func NewCart(id, customerID string, now time.Time) (Order, error) {
	if customerID == "" {
		return Order{}, ErrCustomerRequired
	}
	return Order{
		ID:         id,
		CustomerID: customerID,
		Status:     OrderStatusInProgress,
		Items:      []OrderItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Active сообщает, что заказ ещё можно менять.
func (o *Order) Active() bool {
	return o.Status == OrderStatusInProgress
}

// FindItem возвращает индекс позиции с товаром productID или -1.
func (o *Order) FindItem(productID string) int {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddLine добавляет qty единиц товара: увеличивает существующую позицию
// или создаёт новую со снимком названия и цены.
func (o *Order) AddLine(itemID string, product Product, qty int32, now time.Time) error {
	if !o.Active() {
		return ErrNoActiveOrder
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	if idx := o.FindItem(product.ID); idx >= 0 {
		if o.Items[idx].Qty > math.MaxInt32-qty {
			return ErrInvalidQuantity
		}
		o.Items[idx].Qty += qty
	} else {
		o.Items = append(o.Items, OrderItem{
			ID:          itemID,
			ProductID:   product.ID,
			ProductName: product.Name,
			PriceMinor:  product.PriceMinor,
			Qty:         qty,
			CreatedAt:   now,
		})
	}

	o.Recalculate()
	o.UpdatedAt = now
	return nil
}

// RemoveLine удаляет позицию целиком и возвращает её, чтобы вернуть остаток на склад.
func (o *Order) RemoveLine(productID string, now time.Time) (OrderItem, error) {
	if !o.Active() {
		return OrderItem{}, ErrNoActiveOrder
	}
	idx := o.FindItem(productID)
	if idx < 0 {
		return OrderItem{}, ErrItemNotInCart
	}

	removed := o.Items[idx]
	items := make([]OrderItem, 0, len(o.Items)-1)
	items = append(items, o.Items[:idx]...)
	items = append(items, o.Items[idx+1:]...)
	o.Items = items

	o.Recalculate()
	o.UpdatedAt = now
	return removed, nil
}

// Place переводит корзину в placed. Пустую корзину оформить нельзя.
func (o *Order) Place(now time.Time) error {
	if !o.Active() {
		return ErrNoActiveOrder
	}
	if len(o.Items) == 0 {
		return ErrEmptyCart
	}
	return o.transition(OrderStatusPlaced, now)
}

// Cancel переводит корзину в cancelled и возвращает позиции, остатки которых нужно восстановить.
func (o *Order) Cancel(now time.Time) ([]OrderItem, error) {
	if !o.Active() {
		return nil, ErrNoActiveOrder
	}
	released := append([]OrderItem(nil), o.Items...)
	if err := o.transition(OrderStatusCancelled, now); err != nil {
		return nil, err
	}
	return released, nil
}

func (o *Order) transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// Recalculate пересчитывает сумму заказа по позициям.
func (o *Order) Recalculate() {
	var total int64
	for _, item := range o.Items {
		total += item.LineTotal()
	}
	o.AmountMinor = total
}

// TotalQty возвращает количество единиц товара productID в заказе.
func (o *Order) TotalQty(productID string) int32 {
	if idx := o.FindItem(productID); idx >= 0 {
		return o.Items[idx].Qty
	}
	return 0
}

// Clone возвращает копию заказа с собственным срезом позиций.
func (o Order) Clone() Order {
	dst := o
	if o.Items != nil {
		dst.Items = append(make([]OrderItem, 0, len(o.Items)), o.Items...)
	}
	return dst
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
// Пустая корзина допустима: позиции обязательны только при оформлении.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if o.Status == OrderStatusPlaced && len(o.Items) == 0 {
		errs = append(errs, ErrEmptyCart)
	}

	seen := make(map[string]struct{}, len(o.Items))
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrPriceNegative)
		}
		if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, ErrDuplicateLine)
		}
		seen[item.ProductID] = struct{}{}
		calc += item.LineTotal()
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
