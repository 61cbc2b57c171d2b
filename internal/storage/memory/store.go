package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// state хранит снимок всех таблиц.
// Заказы и события хранятся значениями и никогда не меняются на месте,
// поэтому поверхностной копии карт достаточно для изоляции транзакции.
type state struct {
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	timeline  map[string][]domain.TimelineEvent
	outbox    map[string]outboxRecord
	outboxSeq int64
}

func newState() *state {
	return &state{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		timeline:  make(map[string][]domain.TimelineEvent),
		outbox:    make(map[string]outboxRecord),
	}
}

func (s *state) clone() *state {
	return &state{
		customers: maps.Clone(s.customers),
		products:  maps.Clone(s.products),
		orders:    maps.Clone(s.orders),
		timeline:  maps.Clone(s.timeline),
		outbox:    maps.Clone(s.outbox),
		outboxSeq: s.outboxSeq,
	}
}

// Store реализует транзакционное in-memory хранилище для локальной разработки и тестов.
// Транзакции выполняются строго последовательно: fn работает с копией состояния,
// которая подменяет текущее только при успешном завершении.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		state: newState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx выполняет fn атомарно. Ошибка fn откатывает все изменения.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memTx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Outbox возвращает репозиторий outbox для воркера публикации.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepositoryInMemory{store: s}
}

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (s *Store) Ping(context.Context) error {
	return nil
}

// read выполняет fn над текущим состоянием под блокировкой без копирования.
func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// write меняет текущее состояние вне пользовательской транзакции.
func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

type memTx struct {
	st  *state
	now func() time.Time
}

func (t *memTx) Customers() domain.CustomerRepository {
	return &customerRepositoryInMemory{st: t.st}
}

func (t *memTx) Products() domain.ProductRepository {
	return &productRepositoryInMemory{st: t.st, now: t.now}
}

func (t *memTx) Orders() domain.OrderRepository {
	return &orderRepositoryInMemory{st: t.st}
}

func (t *memTx) Timeline() domain.TimelineRepository {
	return &timelineRepositoryInMemory{st: t.st}
}

func (t *memTx) Outbox() domain.OutboxWriter {
	return &outboxWriterInMemory{st: t.st, now: t.now}
}

var (
	_ domain.TxManager = (*Store)(nil)
	_ domain.Tx        = (*memTx)(nil)
)
