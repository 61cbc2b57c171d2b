package domain

import (
	"context"
	"time"
)

// TxManager выполняет функцию в одной транзакции хранилища.
// Если fn возвращает ошибку, все изменения откатываются.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx открывает доступ к репозиториям в рамках одной транзакции.
type Tx interface {
	Customers() CustomerRepository
	Products() ProductRepository
	Orders() OrderRepository
	Timeline() TimelineRepository
	Outbox() OutboxWriter
}

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// Create сохраняет клиента. Возвращает ErrDuplicateUsername или ErrDuplicateEmail.
	Create(ctx context.Context, customer Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	GetByUsername(ctx context.Context, username string) (Customer, error)
	// Lock захватывает строку клиента до конца транзакции и сериализует его операции с корзиной.
	Lock(ctx context.Context, id string) (Customer, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	// IncrementRanking увеличивает рейтинг на единицу и возвращает новое значение.
	IncrementRanking(ctx context.Context, id string) (int64, error)
	// ListByRanking возвращает клиентов по убыванию рейтинга, затем по имени.
	ListByRanking(ctx context.Context, limit int) ([]Customer, error)
}

// ProductRepository описывает требования к каталогу.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, id string) error
	// List возвращает все товары, упорядоченные по названию.
	List(ctx context.Context) ([]Product, error)
	// Search ищет подстроку в названии, описании и категории без учёта регистра.
	Search(ctx context.Context, term string) ([]Product, error)
	Count(ctx context.Context) (int, error)
	// AdjustStock атомарно меняет остаток на delta. Возвращает false, если остаток
	// стал бы отрицательным, и ErrProductNotFound, если товара нет.
	AdjustStock(ctx context.Context, id string, delta int32) (bool, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// FindActive возвращает заказ клиента в статусе in_progress или ErrNoActiveOrder.
	FindActive(ctx context.Context, customerID string) (Order, error)
	// CreateActive вставляет корзину, если у клиента её ещё нет. Иначе возвращает
	// существующую корзину и created=false.
	CreateActive(ctx context.Context, order Order) (stored Order, created bool, err error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента от новых к старым с опциональным ограничением.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking и возвращает новую версию.
	Save(ctx context.Context, order Order) (Order, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// OutboxWriter кладёт событие в outbox внутри транзакции операции.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// OutboxRepository используется воркером публикации вне транзакций операций.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, responseCode int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, responseCode int) error
	// Release снимает ключ в статусе processing, чтобы клиент мог повторить запрос
	// после временного сбоя. Для завершённых ключей ничего не делает.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// SessionRepository хранит сессии клиентов.
type SessionRepository interface {
	Save(ctx context.Context, session Session) error
	// Get возвращает сессию или ErrSessionNotFound (в том числе для истёкшей).
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}
