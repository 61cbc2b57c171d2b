package domain

import (
	"strings"
	"time"
)

// Product — позиция каталога. Движок корзины меняет только Stock.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	PriceMinor  int64
	Stock       int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет поля товара перед записью в каталог.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrProductNameRequired
	}
	if p.PriceMinor < 0 {
		return ErrPriceNegative
	}
	if p.Stock < 0 {
		return ErrStockNegative
	}
	return nil
}

// Matches сообщает, содержит ли название, описание или категория подстроку term без учёта регистра.
func (p *Product) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term) ||
		strings.Contains(strings.ToLower(p.Category), term)
}
