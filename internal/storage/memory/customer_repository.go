package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type customerRepositoryInMemory struct {
	st *state
}

// Create сохраняет клиента, проверяя уникальность имени и email.
func (r *customerRepositoryInMemory) Create(_ context.Context, customer domain.Customer) error {
	for _, existing := range r.st.customers {
		if existing.Username == customer.Username {
			return domain.ErrDuplicateUsername
		}
		if customer.Email != "" && strings.EqualFold(existing.Email, customer.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	r.st.customers[customer.ID] = customer
	return nil
}

func (r *customerRepositoryInMemory) Get(_ context.Context, id string) (domain.Customer, error) {
	customer, ok := r.st.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (r *customerRepositoryInMemory) GetByUsername(_ context.Context, username string) (domain.Customer, error) {
	for _, customer := range r.st.customers {
		if customer.Username == username {
			return customer, nil
		}
	}
	return domain.Customer{}, domain.ErrCustomerNotFound
}

// Lock в памяти сводится к Get: транзакции и так выполняются последовательно.
func (r *customerRepositoryInMemory) Lock(ctx context.Context, id string) (domain.Customer, error) {
	return r.Get(ctx, id)
}

func (r *customerRepositoryInMemory) UpdatePassword(_ context.Context, id, passwordHash string, now time.Time) error {
	customer, ok := r.st.customers[id]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	customer.PasswordHash = passwordHash
	customer.UpdatedAt = now
	r.st.customers[id] = customer
	return nil
}

func (r *customerRepositoryInMemory) IncrementRanking(_ context.Context, id string) (int64, error) {
	customer, ok := r.st.customers[id]
	if !ok {
		return 0, domain.ErrCustomerNotFound
	}
	customer.Ranking++
	r.st.customers[id] = customer
	return customer.Ranking, nil
}

func (r *customerRepositoryInMemory) ListByRanking(_ context.Context, limit int) ([]domain.Customer, error) {
	result := make([]domain.Customer, 0, len(r.st.customers))
	for _, customer := range r.st.customers {
		result = append(result, customer)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Ranking != result[j].Ranking {
			return result[i].Ranking > result[j].Ranking
		}
		return result[i].Username < result[j].Username
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
