// Package redis хранит сессии клиентов в Redis с истечением по TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	keyPrefix = "shop:session:"
	opTimeout = 2 * time.Second
)

type sessionRecord struct {
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SessionRepository хранит сессии в Redis с TTL.
type SessionRepository struct {
	rdb goredis.UniversalClient
	now func() time.Time
}

// NewSessionRepository создаёт репозиторий сессий.
func NewSessionRepository(rdb goredis.UniversalClient) *SessionRepository {
	return &SessionRepository{
		rdb: rdb,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Open подключается к Redis и проверяет соединение.
func Open(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", errors.Join(domain.ErrPersistenceUnavailable, err))
	}
	return rdb, nil
}

// Save кладёт сессию с TTL до ExpiresAt. Уже истёкшая сессия не сохраняется.
func (r *SessionRepository) Save(ctx context.Context, session domain.Session) error {
	ttl := time.Duration(0)
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return nil
		}
	}

	payload, err := json.Marshal(sessionRecord{
		CustomerID: session.CustomerID,
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := r.rdb.Set(ctx, keyPrefix+session.Token, payload, ttl).Err(); err != nil {
		return unavailable("set session", err)
	}
	return nil
}

// Get возвращает сессию или ErrSessionNotFound.
func (r *SessionRepository) Get(ctx context.Context, token string) (domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := r.rdb.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, unavailable("get session", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	session := domain.Session{
		Token:      token,
		CustomerID: record.CustomerID,
		CreatedAt:  record.CreatedAt,
		ExpiresAt:  record.ExpiresAt,
	}
	if session.Expired(r.now()) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

// Delete удаляет сессию. Отсутствие ключа не считается ошибкой.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.rdb.Del(ctx, keyPrefix+token).Err(); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

// Ping проверяет доступность Redis (для health-check).
func (r *SessionRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping redis", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrPersistenceUnavailable, err))
}

var _ domain.SessionRepository = (*SessionRepository)(nil)
