// Package cart реализует движок согласованности корзины, заказов и складских остатков.
//
// Каждая операция выполняется в одной транзакции хранилища: списание или возврат
// остатка, изменение позиций и суммы заказа, рейтинг клиента, события timeline и
// outbox фиксируются вместе или не фиксируются вовсе. Операции одного клиента
// сериализуются блокировкой строки клиента.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Имена операций для метрик и логов.
const (
	OpOpenCart    = "open_cart"
	OpActiveOrder = "active_order"
	OpAddItem     = "add_item"
	OpRemoveItem  = "remove_item"
	OpPlaceOrder  = "place_order"
	OpCancelOrder = "cancel_order"
	OpHistory     = "order_history"
)

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics включает метрики движка.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов и позиций.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// Engine выполняет операции корзины поверх транзакционного хранилища.
type Engine struct {
	tx      domain.TxManager
	logger  *log.Entry
	metrics *metrics.CartMetrics
	now     func() time.Time
	newID   func() string
}

// NewEngine создаёт движок. Без WithMetrics метрики не пишутся.
func NewEngine(tx domain.TxManager, options ...Option) *Engine {
	e := &Engine{
		tx:    tx,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, option := range options {
		option(e)
	}
	if e.logger == nil {
		e.logger = log.WithField("component", "cart-engine")
	}
	return e
}

// HistoryEntry: заказ из истории клиента вместе с его timeline.
type HistoryEntry struct {
	Order    domain.Order
	Timeline []domain.TimelineEvent
}

// GetOrCreateActiveOrder возвращает корзину клиента, создавая пустую при отсутствии.
// Две параллельные попытки создать корзину приводят к одному заказу.
func (e *Engine) GetOrCreateActiveOrder(ctx context.Context, customerID string) (domain.Order, error) {
	var result domain.Order
	err := e.run(ctx, OpOpenCart, customerID, func(ctx context.Context, tx domain.Tx, fx *effects) error {
		if err := lockCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		order, err := e.openCart(ctx, tx, customerID, fx)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	return result, err
}

// ActiveOrder возвращает корзину клиента или ErrNoActiveOrder. Состояние не меняется.
func (e *Engine) ActiveOrder(ctx context.Context, customerID string) (domain.Order, error) {
	var result domain.Order
	err := e.run(ctx, OpActiveOrder, customerID, func(ctx context.Context, tx domain.Tx, _ *effects) error {
		order, err := tx.Orders().FindActive(ctx, customerID)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	return result, err
}

// AddItem добавляет qty единиц товара в корзину и списывает их со склада.
// При ошибке не меняется ничего, включая создание корзины.
func (e *Engine) AddItem(ctx context.Context, customerID, productID string, qty int32) (domain.Order, error) {
	var result domain.Order
	err := e.run(ctx, OpAddItem, customerID, func(ctx context.Context, tx domain.Tx, fx *effects) error {
		if qty <= 0 {
			return domain.ErrInvalidQuantity
		}
		if productID == "" {
			return domain.ErrProductNotFound
		}
		if err := lockCustomer(ctx, tx, customerID); err != nil {
			return err
		}

		product, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}
		if product.Stock < qty {
			return domain.ErrOutOfStock
		}

		order, err := e.openCart(ctx, tx, customerID, fx)
		if err != nil {
			return err
		}

		now := e.now()
		if err := order.AddLine(e.newID(), product, qty, now); err != nil {
			return err
		}

		// Условное списание: проверка остатка выше могла устареть.
		ok, err := tx.Products().AdjustStock(ctx, productID, -qty)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if !ok {
			return domain.ErrOutOfStock
		}
		fx.reserved += qty

		saved, err := e.saveOrder(ctx, tx, order)
		if err != nil {
			return err
		}

		reason := fmt.Sprintf("product=%s qty=%d", productID, qty)
		if err := e.record(ctx, tx, fx, saved, domain.TimelineItemAdded, reason, domain.EventCartItemAdded,
			[]domain.StockChange{{ProductID: productID, Delta: -qty}}); err != nil {
			return err
		}

		result = saved
		return nil
	})
	return result, err
}

// RemoveItem удаляет позицию целиком и возвращает её количество на склад.
// Повторный вызов вернёт ErrItemNotInCart без повторного возврата остатка.
func (e *Engine) RemoveItem(ctx context.Context, customerID, productID string) (domain.Order, error) {
	var result domain.Order
	err := e.run(ctx, OpRemoveItem, customerID, func(ctx context.Context, tx domain.Tx, fx *effects) error {
		if err := lockCustomer(ctx, tx, customerID); err != nil {
			return err
		}

		order, err := tx.Orders().FindActive(ctx, customerID)
		if err != nil {
			return err
		}

		removed, err := order.RemoveLine(productID, e.now())
		if err != nil {
			return err
		}

		changes, err := e.restoreStock(ctx, tx, fx, []domain.OrderItem{removed})
		if err != nil {
			return err
		}

		saved, err := e.saveOrder(ctx, tx, order)
		if err != nil {
			return err
		}

		reason := fmt.Sprintf("product=%s qty=%d", productID, removed.Qty)
		if err := e.record(ctx, tx, fx, saved, domain.TimelineItemRemoved, reason, domain.EventCartItemRemoved, changes); err != nil {
			return err
		}

		result = saved
		return nil
	})
	return result, err
}

// PlaceOrder оформляет корзину: статус placed, остатки не меняются, рейтинг клиента +1.
func (e *Engine) PlaceOrder(ctx context.Context, customerID string) (domain.Order, error) {
	var result domain.Order
	err := e.run(ctx, OpPlaceOrder, customerID, func(ctx context.Context, tx domain.Tx, fx *effects) error {
		if err := lockCustomer(ctx, tx, customerID); err != nil {
			return err
		}

		order, err := tx.Orders().FindActive(ctx, customerID)
		if err != nil {
			return err
		}
		if err := order.Place(e.now()); err != nil {
			return err
		}

		saved, err := e.saveOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		if _, err := tx.Customers().IncrementRanking(ctx, customerID); err != nil {
			return fmt.Errorf("increment ranking: %w", err)
		}
		fx.placed = true

		if err := e.record(ctx, tx, fx, saved, domain.TimelinePlaced, "", domain.EventOrderPlaced, nil); err != nil {
			return err
		}

		result = saved
		return nil
	})
	return result, err
}

// CancelOrder возвращает на склад все позиции корзины и переводит её в cancelled.
// Позиции удалённых из каталога товаров пропускаются с записью в лог.
func (e *Engine) CancelOrder(ctx context.Context, customerID string) (domain.Order, error) {
	var result domain.Order
	err := e.run(ctx, OpCancelOrder, customerID, func(ctx context.Context, tx domain.Tx, fx *effects) error {
		if err := lockCustomer(ctx, tx, customerID); err != nil {
			return err
		}

		order, err := tx.Orders().FindActive(ctx, customerID)
		if err != nil {
			return err
		}

		released, err := order.Cancel(e.now())
		if err != nil {
			return err
		}

		changes, err := e.restoreStock(ctx, tx, fx, released)
		if err != nil {
			return err
		}

		saved, err := e.saveOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		fx.cancelled = true

		if err := e.record(ctx, tx, fx, saved, domain.TimelineCancelled, "", domain.EventOrderCancelled, changes); err != nil {
			return err
		}

		result = saved
		return nil
	})
	return result, err
}

// OrderHistory возвращает заказы клиента от новых к старым вместе с timeline.
func (e *Engine) OrderHistory(ctx context.Context, customerID string, limit int) ([]HistoryEntry, error) {
	var result []HistoryEntry
	err := e.run(ctx, OpHistory, customerID, func(ctx context.Context, tx domain.Tx, _ *effects) error {
		orders, err := tx.Orders().ListByCustomer(ctx, customerID, limit)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}

		entries := make([]HistoryEntry, 0, len(orders))
		for _, order := range orders {
			events, err := tx.Timeline().List(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("list timeline: %w", err)
			}
			entries = append(entries, HistoryEntry{Order: order, Timeline: events})
		}
		result = entries
		return nil
	})
	return result, err
}

// openCart находит корзину клиента или атомарно создаёт новую.
func (e *Engine) openCart(ctx context.Context, tx domain.Tx, customerID string, fx *effects) (domain.Order, error) {
	order, err := tx.Orders().FindActive(ctx, customerID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrNoActiveOrder) {
		return domain.Order{}, fmt.Errorf("find active order: %w", err)
	}

	now := e.now()
	cart, err := domain.NewCart(e.newID(), customerID, now)
	if err != nil {
		return domain.Order{}, err
	}

	stored, created, err := tx.Orders().CreateActive(ctx, cart)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create active order: %w", err)
	}
	if !created {
		return stored, nil
	}

	fx.opened = true
	if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID:  stored.ID,
		Type:     domain.TimelineCartOpened,
		Occurred: now,
	}); err != nil {
		return domain.Order{}, fmt.Errorf("append timeline: %w", err)
	}
	fx.timeline++
	return stored, nil
}

// restoreStock возвращает остатки позиций в порядке идентификаторов товаров,
// чтобы параллельные отмены блокировали строки в одном порядке.
func (e *Engine) restoreStock(ctx context.Context, tx domain.Tx, fx *effects, items []domain.OrderItem) ([]domain.StockChange, error) {
	sorted := append([]domain.OrderItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	changes := make([]domain.StockChange, 0, len(sorted))
	for _, item := range sorted {
		ok, err := tx.Products().AdjustStock(ctx, item.ProductID, item.Qty)
		if errors.Is(err, domain.ErrProductNotFound) {
			fx.skipped = append(fx.skipped, item)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("restore stock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("restore stock for %s: %w", item.ProductID, domain.ErrStockLimit)
		}
		fx.restored += item.Qty
		changes = append(changes, domain.StockChange{ProductID: item.ProductID, Delta: item.Qty})
	}
	return changes, nil
}

func (e *Engine) saveOrder(ctx context.Context, tx domain.Tx, order domain.Order) (domain.Order, error) {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order %s invariants: %w", order.ID, errors.Join(errs...))
	}
	saved, err := tx.Orders().Save(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}
	return saved, nil
}

// record пишет событие timeline и событие outbox в транзакции операции.
func (e *Engine) record(
	ctx context.Context,
	tx domain.Tx,
	fx *effects,
	order domain.Order,
	timelineType, reason, eventType string,
	stock []domain.StockChange,
) error {
	now := e.now()
	if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     timelineType,
		Reason:   reason,
		Occurred: now,
	}); err != nil {
		return fmt.Errorf("append timeline: %w", err)
	}
	fx.timeline++

	payload, err := encodeOrderEvent(order, stock, now)
	if err != nil {
		return err
	}
	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		ID:            e.newID(),
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}); err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	fx.outbox++
	return nil
}

func lockCustomer(ctx context.Context, tx domain.Tx, customerID string) error {
	if _, err := tx.Customers().Lock(ctx, customerID); err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.ErrNotAuthenticated
		}
		return fmt.Errorf("lock customer: %w", err)
	}
	return nil
}
