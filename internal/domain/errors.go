package domain

import (
	"context"
	"errors"
)

// Ошибки бизнес-правил корзины и заказов.
var (
	// ErrNotAuthenticated возвращается, если операция вызвана без действующей сессии.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutOfStock — на складе меньше единиц, чем запрошено.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInvalidQuantity — количество должно быть больше нуля.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrNoActiveOrder — у клиента нет заказа в статусе in_progress.
	ErrNoActiveOrder = errors.New("no active order")
	// ErrItemNotInCart — в активном заказе нет позиции с таким товаром.
	ErrItemNotInCart = errors.New("item not in cart")
	// ErrEmptyCart — нельзя оформить заказ без позиций.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrDuplicateUsername — имя пользователя уже занято.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrDuplicateEmail — email уже зарегистрирован.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrPersistenceUnavailable — хранилище недоступно, операцию можно повторить.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// Ошибки учётных записей и доступа.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUsernameRequired   = errors.New("username is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordTooShort   = errors.New("password is too short")
)

// Ошибки валидации сущностей.
var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = errors.New("product_id is required")
	// Ошибка пустого названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка повторного создания товара с тем же идентификатором.
	ErrProductAlreadyExists = errors.New("product already exists")
	// Ошибка отрицательной цены товара или позиции.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка отрицательного остатка.
	ErrStockNegative = errors.New("stock must be non-negative")
	// Возврат на склад превысил бы максимальный остаток товара.
	ErrStockLimit = errors.New("stock would exceed the maximum")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка двух позиций с одним товаром в заказе.
	ErrDuplicateLine = errors.New("order contains duplicate product lines")
	// Ошибка неизвестного статуса заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidTransition — переход между статусами запрещён автоматом состояний.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Ошибки хранилища.
var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrConcurrentUpdate — транзакция не прошла из-за конкурентной записи (serialization/deadlock).
	ErrConcurrentUpdate = errors.New("concurrent update")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Ошибки ключей идемпотентности.
var (
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// ErrorKind — класс ошибки, на который опирается транспортный слой.
type ErrorKind string

const (
	KindNone                   ErrorKind = ""
	KindNotAuthenticated       ErrorKind = "not_authenticated"
	KindProductNotFound        ErrorKind = "product_not_found"
	KindOutOfStock             ErrorKind = "out_of_stock"
	KindInvalidQuantity        ErrorKind = "invalid_quantity"
	KindNoActiveOrder          ErrorKind = "no_active_order"
	KindItemNotInCart          ErrorKind = "item_not_in_cart"
	KindEmptyCart              ErrorKind = "empty_cart"
	KindStockLimit             ErrorKind = "stock_limit"
	KindDuplicateUsername      ErrorKind = "duplicate_username"
	KindDuplicateEmail         ErrorKind = "duplicate_email"
	KindPersistenceUnavailable ErrorKind = "persistence_unavailable"
	KindInvalidCredentials     ErrorKind = "invalid_credentials"
	KindCustomerNotFound       ErrorKind = "customer_not_found"
	KindPermissionDenied       ErrorKind = "permission_denied"
	KindInvalidArgument        ErrorKind = "invalid_argument"
	KindConflict               ErrorKind = "conflict"
	KindInternal               ErrorKind = "internal"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotAuthenticated, KindNotAuthenticated},
	{ErrSessionNotFound, KindNotAuthenticated},
	{ErrProductNotFound, KindProductNotFound},
	{ErrOutOfStock, KindOutOfStock},
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrItemQtyInvalid, KindInvalidQuantity},
	{ErrNoActiveOrder, KindNoActiveOrder},
	{ErrItemNotInCart, KindItemNotInCart},
	{ErrEmptyCart, KindEmptyCart},
	{ErrStockLimit, KindStockLimit},
	{ErrDuplicateUsername, KindDuplicateUsername},
	{ErrDuplicateEmail, KindDuplicateEmail},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrCustomerNotFound, KindCustomerNotFound},
	{ErrPermissionDenied, KindPermissionDenied},
	{ErrCustomerRequired, KindInvalidArgument},
	{ErrProductRequired, KindInvalidArgument},
	{ErrProductNameRequired, KindInvalidArgument},
	{ErrPriceNegative, KindInvalidArgument},
	{ErrStockNegative, KindInvalidArgument},
	{ErrUsernameRequired, KindInvalidArgument},
	{ErrEmailRequired, KindInvalidArgument},
	{ErrPasswordTooShort, KindInvalidArgument},
	{ErrIdempotencyKeyRequired, KindInvalidArgument},
	{ErrProductAlreadyExists, KindConflict},
	{ErrIdempotencyHashMismatch, KindConflict},
	{ErrIdempotencyKeyAlreadyExists, KindConflict},
	{ErrPersistenceUnavailable, KindPersistenceUnavailable},
	{ErrConcurrentUpdate, KindPersistenceUnavailable},
	{ErrOrderVersionConflict, KindPersistenceUnavailable},
}

// Kind классифицирует ошибку. Бизнес-ошибки проверяются раньше инфраструктурных,
// поэтому errors.Join(ErrOutOfStock, ...) остаётся OutOfStock.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindPersistenceUnavailable
	}
	return KindInternal
}

// IsRetryable сообщает, имеет ли смысл повторить операцию без изменения запроса.
func IsRetryable(err error) bool {
	return Kind(err) == KindPersistenceUnavailable
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
