package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const orderColumns = `id, customer_id, status, amount_minor, version, created_at, updated_at`

type orderRepository struct {
	db dbtx
}

// FindActive возвращает корзину клиента и блокирует её строку до конца транзакции.
func (r *orderRepository) FindActive(ctx context.Context, customerID string) (domain.Order, error) {
	order, err := r.one(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		  AND status = 'in_progress'
		FOR UPDATE
	`, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrNoActiveOrder
	}
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// CreateActive опирается на частичный уникальный индекс orders_active_customer_uniq:
// при гонке двух транзакций вторая получает уже созданную корзину.
func (r *orderRepository) CreateActive(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (customer_id) WHERE status = 'in_progress' DO NOTHING
	`,
		order.ID, order.CustomerID, string(order.Status), order.AmountMinor,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, false, domain.ErrOrderVersionConflict
		}
		return domain.Order{}, false, unavailable("insert order", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, false, unavailable("rows affected", err)
	}
	if affected == 0 {
		existing, err := r.FindActive(ctx, order.CustomerID)
		if err != nil {
			return domain.Order{}, false, err
		}
		return existing, false, nil
	}

	if err := r.insertItems(ctx, order.ID, order.Items); err != nil {
		return domain.Order{}, false, err
	}
	return order.Clone(), true, nil
}

// Get возвращает заказ по идентификатору или ErrOrderNotFound.
func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	order, err := r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListByCustomer возвращает заказы клиента от новых к старым.
// Позиции догружаются после закрытия курсора: внутри *sql.Tx нельзя держать два открытых запроса.
func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, unavailable("list orders", err)
	}

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, unavailable("scan order row", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, unavailable("iterate order rows", err)
	}
	rows.Close()

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// Save обновляет заказ с проверкой версии и целиком переписывает его позиции.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    amount_minor = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1
		  AND version = $5
	`,
		order.ID,
		string(order.Status),
		order.AmountMinor,
		order.UpdatedAt,
		order.Version,
	)
	if err != nil {
		return domain.Order{}, unavailable("update order", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, unavailable("rows affected", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return domain.Order{}, err
		}
		if !exists {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.ErrOrderVersionConflict
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return domain.Order{}, unavailable("delete order items", err)
	}
	if err := r.insertItems(ctx, order.ID, order.Items); err != nil {
		return domain.Order{}, err
	}

	saved := order.Clone()
	saved.Version++
	return saved, nil
}

func (r *orderRepository) one(ctx context.Context, query string, arg string) (domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, err
	}
	if err != nil {
		return domain.Order{}, unavailable("select order", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) insertItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	for position, item := range items {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, price_minor, qty, position, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			item.ID, orderID, item.ProductID, item.ProductName,
			item.PriceMinor, item.Qty, position, item.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert order item %s: %w", item.ProductID, domain.ErrDuplicateLine)
			}
			return unavailable("insert order item", err)
		}
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, price_minor, qty, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, unavailable("load order items", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.PriceMinor, &item.Qty, &item.CreatedAt); err != nil {
			return nil, unavailable("scan order item", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate order items", err)
	}
	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return false, unavailable("check order exists", err)
	}
	return exists, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := row.Scan(
		&order.ID, &order.CustomerID, &status, &order.AmountMinor,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
