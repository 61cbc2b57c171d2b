package domain

import "time"

// Customer описывает зарегистрированного покупателя.
type Customer struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Address      string
	PasswordHash string
	// Ranking увеличивается на единицу при каждом оформленном заказе.
	Ranking   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session связывает непрозрачный токен с клиентом.
type Session struct {
	Token      string
	CustomerID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired сообщает, истёк ли срок действия сессии к моменту now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
