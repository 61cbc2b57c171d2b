// Package catalog отвечает за просмотр, поиск и администрирование каталога товаров.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductInput содержит редактируемые поля товара.
type ProductInput struct {
	Name        string
	Description string
	Category    string
	PriceMinor  int64
	Stock       int32
}

// Service работает с каталогом через транзакционное хранилище.
type Service struct {
	tx     domain.TxManager
	logger *log.Entry
	now    func() time.Time
	newID  func() string
}

// NewService создаёт сервис каталога.
func NewService(tx domain.TxManager, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{
		tx:     tx,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// List возвращает весь каталог по названию.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	var result []domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		products, err := tx.Products().List(ctx)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		result = products
		return nil
	})
	return result, err
}

// Search ищет товары по подстроке в названии, описании или категории.
// Пустой запрос возвращает весь каталог.
func (s *Service) Search(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx)
	}

	var result []domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		products, err := tx.Products().Search(ctx, term)
		if err != nil {
			return fmt.Errorf("search products: %w", err)
		}
		result = products
		return nil
	})
	return result, err
}

// Get возвращает товар или ErrProductNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	var result domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		product, err := tx.Products().Get(ctx, id)
		if err != nil {
			return err
		}
		result = product
		return nil
	})
	return result, err
}

// AddProduct добавляет товар в каталог.
func (s *Service) AddProduct(ctx context.Context, input ProductInput) (domain.Product, error) {
	now := s.now()
	product := domain.Product{
		ID:          s.newID(),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		PriceMinor:  input.PriceMinor,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Products().Create(ctx, product)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("product added")
	return product, nil
}

// UpdateProduct перезаписывает редактируемые поля товара.
// Цены в уже добавленных позициях заказов не меняются.
func (s *Service) UpdateProduct(ctx context.Context, id string, input ProductInput) (domain.Product, error) {
	var result domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		product, err := tx.Products().Get(ctx, id)
		if err != nil {
			return err
		}

		product.Name = strings.TrimSpace(input.Name)
		product.Description = strings.TrimSpace(input.Description)
		product.Category = strings.TrimSpace(input.Category)
		product.PriceMinor = input.PriceMinor
		product.Stock = input.Stock
		product.UpdatedAt = s.now()
		if err := product.Validate(); err != nil {
			return err
		}

		if err := tx.Products().Update(ctx, product); err != nil {
			return err
		}
		result = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", id).Info("product updated")
	return result, nil
}

// RemoveProduct удаляет товар. Позиции в корзинах остаются; при их удалении
// или отмене заказа возврат остатка для этого товара пропускается.
func (s *Service) RemoveProduct(ctx context.Context, id string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Products().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.WithField("product_id", id).Info("product removed")
	return nil
}

// SeedSampleCatalog заполняет пустой каталог демонстрационными товарами.
// Возвращает число добавленных товаров; непустой каталог не меняется.
func (s *Service) SeedSampleCatalog(ctx context.Context) (int, error) {
	added := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		added = 0
		count, err := tx.Products().Count(ctx)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		if count > 0 {
			return nil
		}

		now := s.now()
		for _, input := range SampleProducts {
			product := domain.Product{
				ID:          s.newID(),
				Name:        input.Name,
				Description: input.Description,
				Category:    input.Category,
				PriceMinor:  input.PriceMinor,
				Stock:       input.Stock,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Products().Create(ctx, product); err != nil {
				return fmt.Errorf("seed product %q: %w", input.Name, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if added > 0 {
		s.logger.WithField("products", added).Info("sample catalog seeded")
	}
	return added, nil
}
