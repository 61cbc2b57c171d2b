// Package postgres реализует хранилище магазина поверх PostgreSQL (pgx через database/sql).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout     = 5 * time.Second
	txTimeout     = 10 * time.Second
	maxTxAttempts = 3
	txRetryDelay  = 15 * time.Millisecond
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// dbtx покрывает *sql.DB и *sql.Tx, репозитории работают с обоими.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store оборачивает SQL-подключение к PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, unavailable("ping postgres", err)
	}

	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return unavailable("ping postgres", err)
	}
	return nil
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Outbox возвращает репозиторий outbox для воркера публикации.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{db: s.db, now: s.now}
}

// Idempotency возвращает репозиторий ключей идемпотентности.
// Ключи пишутся вне транзакций операций и переживают их откат.
func (s *Store) Idempotency() domain.IdempotencyRepository {
	return &idempotencyRepository{db: s.db, now: s.now}
}

// WithinTx выполняет fn в транзакции READ COMMITTED. Сбои сериализации,
// взаимные блокировки и конфликт версии заказа повторяются до maxTxAttempts раз.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}

		timer := time.NewTimer(time.Duration(attempt) * txRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unavailable("transaction retry interrupted", errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}

	return fmt.Errorf("transaction retries exhausted: %w", errors.Join(domain.ErrConcurrentUpdate, err))
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}

	if err := fn(ctx, &pgTx{tx: sqlTx, now: s.now}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return unavailable("commit tx", err)
	}
	return nil
}

// pgTx раздаёт репозитории, привязанные к одной *sql.Tx.
type pgTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *pgTx) Customers() domain.CustomerRepository {
	return &customerRepository{db: t.tx}
}

func (t *pgTx) Products() domain.ProductRepository {
	return &productRepository{db: t.tx, now: t.now}
}

func (t *pgTx) Orders() domain.OrderRepository {
	return &orderRepository{db: t.tx}
}

func (t *pgTx) Timeline() domain.TimelineRepository {
	return &timelineRepository{db: t.tx, now: t.now}
}

func (t *pgTx) Outbox() domain.OutboxWriter {
	return &outboxWriter{db: t.tx, now: t.now}
}

var (
	_ domain.TxManager = (*Store)(nil)
	_ domain.Tx        = (*pgTx)(nil)
)
