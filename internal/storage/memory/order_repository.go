package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory работает с копией состояния текущей транзакции.
type orderRepositoryInMemory struct {
	st *state
}

// FindActive возвращает корзину клиента или ErrNoActiveOrder.
func (r *orderRepositoryInMemory) FindActive(_ context.Context, customerID string) (domain.Order, error) {
	if order, ok := r.active(customerID); ok {
		return order.Clone(), nil
	}
	return domain.Order{}, domain.ErrNoActiveOrder
}

// CreateActive вставляет корзину, если у клиента ещё нет заказа in_progress.
func (r *orderRepositoryInMemory) CreateActive(_ context.Context, order domain.Order) (domain.Order, bool, error) {
	if existing, ok := r.active(order.CustomerID); ok {
		return existing.Clone(), false, nil
	}
	if _, exists := r.st.orders[order.ID]; exists {
		return domain.Order{}, false, domain.ErrOrderVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.st.orders[order.ID] = order.Clone()
	return order.Clone(), true, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	order, ok := r.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	result := make([]domain.Order, 0)
	for _, order := range r.st.orders {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, order.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) (domain.Order, error) {
	current, ok := r.st.orders[order.ID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.Order{}, domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	r.st.orders[order.ID] = order.Clone()
	return order.Clone(), nil
}

func (r *orderRepositoryInMemory) active(customerID string) (domain.Order, bool) {
	for _, order := range r.st.orders {
		if order.CustomerID == customerID && order.Status == domain.OrderStatusInProgress {
			return order, true
		}
	}
	return domain.Order{}, false
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
