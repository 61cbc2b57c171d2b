package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, name, description, category, price_minor, stock, created_at, updated_at`

type productRepository struct {
	db  dbtx
	now func() time.Time
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		product.ID, product.Name, product.Description, product.Category,
		product.PriceMinor, product.Stock, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductAlreadyExists
		}
		return unavailable("insert product", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, unavailable("select product", err)
	}
	return product, nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    category = $4,
		    price_minor = $5,
		    stock = $6,
		    updated_at = $7
		WHERE id = $1
	`,
		product.ID, product.Name, product.Description, product.Category,
		product.PriceMinor, product.Stock, product.UpdatedAt,
	)
	if err != nil {
		return unavailable("update product", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete product", err)
	}
	return requireAffected(res, domain.ErrProductNotFound)
}

// List возвращает товары, упорядоченные по названию (побайтово, как в памяти).
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name COLLATE "C", id COLLATE "C"
	`)
}

func (r *productRepository) Search(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.List(ctx)
	}
	return r.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE name ILIKE $1 OR description ILIKE $1 OR category ILIKE $1
		ORDER BY name COLLATE "C", id COLLATE "C"
	`, likePattern(term))
}

func (r *productRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, unavailable("count products", err)
	}
	return count, nil
}

// AdjustStock меняет остаток одним условным UPDATE: проверка и запись
// выполняются под блокировкой строки. Остаток остаётся в пределах INTEGER.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int32) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2::INTEGER,
		    updated_at = $3
		WHERE id = $1
		  AND stock::BIGINT + $2::INTEGER BETWEEN 0 AND 2147483647
	`, id, delta, r.now())
	if err != nil {
		return false, unavailable("adjust stock", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("rows affected", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, unavailable("check product exists", err)
	}
	if !exists {
		return false, domain.ErrProductNotFound
	}
	return false, nil
}

func (r *productRepository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, unavailable("scan product", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate products", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceMinor, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
