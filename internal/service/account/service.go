// Package account реализует регистрацию клиентов, вход по паролю и сессии.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// DefaultSessionTTL — время жизни сессии по умолчанию.
	DefaultSessionTTL = 24 * time.Hour
	// MinPasswordLength — минимальная длина пароля.
	MinPasswordLength = 6
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSessionTTL задаёт время жизни сессии.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithHashCost задаёт стоимость bcrypt (в тестах удобно bcrypt.MinCost).
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Registration содержит данные для регистрации клиента.
type Registration struct {
	Username string
	Password string
	Email    string
	FullName string
	Address  string
}

// Service управляет учётными записями и сессиями.
type Service struct {
	tx         domain.TxManager
	sessions   domain.SessionRepository
	logger     *log.Entry
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
	newID      func() string
}

// NewService создаёт сервис учётных записей.
func NewService(tx domain.TxManager, sessions domain.SessionRepository, options ...Option) *Service {
	s := &Service{
		tx:         tx,
		sessions:   sessions,
		sessionTTL: DefaultSessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "account")
	}
	return s
}

// Register создаёт клиента с уникальными именем и email.
func (s *Service) Register(ctx context.Context, reg Registration) (domain.Customer, error) {
	username := strings.TrimSpace(reg.Username)
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	switch {
	case username == "":
		return domain.Customer{}, domain.ErrUsernameRequired
	case email == "":
		return domain.Customer{}, domain.ErrEmailRequired
	case len(reg.Password) < MinPasswordLength:
		return domain.Customer{}, domain.ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.hashCost)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	customer := domain.Customer{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(reg.FullName),
		Address:      strings.TrimSpace(reg.Address),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Customers().Create(ctx, customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.WithFields(log.Fields{
		"customer_id": customer.ID,
		"username":    customer.Username,
	}).Info("customer registered")
	return customer, nil
}

// VerifyCredential проверяет пару имя/пароль и возвращает клиента.
func (s *Service) VerifyCredential(ctx context.Context, username, password string) (domain.Customer, error) {
	var customer domain.Customer
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		found, err := tx.Customers().GetByUsername(ctx, strings.TrimSpace(username))
		if err != nil {
			return err
		}
		customer = found
		return nil
	})
	if errors.Is(err, domain.ErrCustomerNotFound) {
		return domain.Customer{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Customer{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)); err != nil {
		return domain.Customer{}, domain.ErrInvalidCredentials
	}
	return customer, nil
}

// Login проверяет пароль и открывает сессию.
func (s *Service) Login(ctx context.Context, username, password string) (domain.Session, domain.Customer, error) {
	customer, err := s.VerifyCredential(ctx, username, password)
	if err != nil {
		s.logger.WithField("username", username).Debug("login rejected")
		return domain.Session{}, domain.Customer{}, err
	}

	now := s.now()
	session := domain.Session{
		Token:      s.newID(),
		CustomerID: customer.ID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return domain.Session{}, domain.Customer{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.WithField("customer_id", customer.ID).Info("customer logged in")
	return session, customer, nil
}

// Logout закрывает сессию. Неизвестный токен не считается ошибкой.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Authenticate возвращает сессию по токену или ErrNotAuthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	if session.Expired(s.now()) {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	return session, nil
}

// Profile возвращает клиента по идентификатору.
func (s *Service) Profile(ctx context.Context, customerID string) (domain.Customer, error) {
	var customer domain.Customer
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		found, err := tx.Customers().Get(ctx, customerID)
		if err != nil {
			return err
		}
		customer = found
		return nil
	})
	return customer, err
}

// ChangePassword меняет пароль после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, customerID, oldPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return domain.ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		customer, err := tx.Customers().Get(ctx, customerID)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(oldPassword)); err != nil {
			return domain.ErrInvalidCredentials
		}
		return tx.Customers().UpdatePassword(ctx, customerID, string(hash), s.now())
	})
}

// Leaderboard возвращает клиентов по убыванию рейтинга.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.Customer, error) {
	var result []domain.Customer
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		customers, err := tx.Customers().ListByRanking(ctx, limit)
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}
		result = customers
		return nil
	})
	return result, err
}
