package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepositoryInMemory struct {
	st  *state
	now func() time.Time
}

func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) error {
	if _, exists := r.st.products[product.ID]; exists {
		return domain.ErrProductAlreadyExists
	}
	r.st.products[product.ID] = product
	return nil
}

func (r *productRepositoryInMemory) Get(_ context.Context, id string) (domain.Product, error) {
	product, ok := r.st.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *productRepositoryInMemory) Update(_ context.Context, product domain.Product) error {
	if _, ok := r.st.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	r.st.products[product.ID] = product
	return nil
}

func (r *productRepositoryInMemory) Delete(_ context.Context, id string) error {
	if _, ok := r.st.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.st.products, id)
	return nil
}

// List возвращает товары, упорядоченные по названию.
func (r *productRepositoryInMemory) List(_ context.Context) ([]domain.Product, error) {
	return r.collect(func(domain.Product) bool { return true }), nil
}

func (r *productRepositoryInMemory) Search(_ context.Context, term string) ([]domain.Product, error) {
	return r.collect(func(p domain.Product) bool { return p.Matches(term) }), nil
}

func (r *productRepositoryInMemory) Count(_ context.Context) (int, error) {
	return len(r.st.products), nil
}

// AdjustStock меняет остаток в пределах [0, MaxInt32]. Выход за границы
// возвращает false без изменений.
func (r *productRepositoryInMemory) AdjustStock(_ context.Context, id string, delta int32) (bool, error) {
	product, ok := r.st.products[id]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	next := int64(product.Stock) + int64(delta)
	if next < 0 || next > math.MaxInt32 {
		return false, nil
	}
	product.Stock = int32(next)
	product.UpdatedAt = r.now()
	r.st.products[id] = product
	return true, nil
}

func (r *productRepositoryInMemory) collect(keep func(domain.Product) bool) []domain.Product {
	result := make([]domain.Product, 0, len(r.st.products))
	for _, product := range r.st.products {
		if keep(product) {
			result = append(result, product)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
