package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const customerColumns = `id, username, email, full_name, address, password_hash, ranking, created_at, updated_at`

type customerRepository struct {
	db dbtx
}

// Create вставляет клиента; нарушение уникальности превращается в доменную ошибку.
func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		customer.ID, customer.Username, customer.Email, customer.FullName, customer.Address,
		customer.PasswordHash, customer.Ranking, customer.CreatedAt, customer.UpdatedAt,
	)
	if err != nil {
		switch uniqueConstraint(err) {
		case "customers_username_uniq":
			return domain.ErrDuplicateUsername
		case "customers_email_uniq":
			return domain.ErrDuplicateEmail
		}
		return unavailable("insert customer", err)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	return r.one(ctx, "select customer", `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

func (r *customerRepository) GetByUsername(ctx context.Context, username string) (domain.Customer, error) {
	return r.one(ctx, "select customer by username", `SELECT `+customerColumns+` FROM customers WHERE username = $1`, username)
}

// Lock берёт строку клиента FOR UPDATE: операции одного клиента с корзиной
// выполняются строго по очереди.
func (r *customerRepository) Lock(ctx context.Context, id string) (domain.Customer, error) {
	return r.one(ctx, "lock customer", `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id)
}

func (r *customerRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET password_hash = $2,
		    updated_at = $3
		WHERE id = $1
	`, id, passwordHash, now)
	if err != nil {
		return unavailable("update customer password", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

func (r *customerRepository) IncrementRanking(ctx context.Context, id string) (int64, error) {
	var ranking int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE customers
		SET ranking = ranking + 1
		WHERE id = $1
		RETURNING ranking
	`, id).Scan(&ranking)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrCustomerNotFound
	}
	if err != nil {
		return 0, unavailable("increment ranking", err)
	}
	return ranking, nil
}

func (r *customerRepository) ListByRanking(ctx context.Context, limit int) ([]domain.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		ORDER BY ranking DESC, username COLLATE "C" ASC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, unavailable("list customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, unavailable("scan customer", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate customers", err)
	}
	return customers, nil
}

func (r *customerRepository) one(ctx context.Context, op, query string, arg string) (domain.Customer, error) {
	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	if err != nil {
		return domain.Customer{}, unavailable(op, err)
	}
	return customer, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.Username, &c.Email, &c.FullName, &c.Address,
		&c.PasswordHash, &c.Ranking, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
