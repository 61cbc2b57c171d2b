package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const internalErrorMessage = "internal error"

var kindCodes = map[domain.ErrorKind]codes.Code{
	domain.KindNotAuthenticated:       codes.Unauthenticated,
	domain.KindInvalidCredentials:     codes.Unauthenticated,
	domain.KindProductNotFound:        codes.NotFound,
	domain.KindCustomerNotFound:       codes.NotFound,
	domain.KindItemNotInCart:          codes.NotFound,
	domain.KindOutOfStock:             codes.FailedPrecondition,
	domain.KindNoActiveOrder:          codes.FailedPrecondition,
	domain.KindEmptyCart:              codes.FailedPrecondition,
	domain.KindStockLimit:             codes.FailedPrecondition,
	domain.KindInvalidQuantity:        codes.InvalidArgument,
	domain.KindInvalidArgument:        codes.InvalidArgument,
	domain.KindDuplicateUsername:      codes.AlreadyExists,
	domain.KindDuplicateEmail:         codes.AlreadyExists,
	domain.KindConflict:               codes.AlreadyExists,
	domain.KindPersistenceUnavailable: codes.Unavailable,
	domain.KindPermissionDenied:       codes.PermissionDenied,
	domain.KindInternal:               codes.Internal,
}

// codeForKind возвращает gRPC-код для класса ошибки.
func codeForKind(kind domain.ErrorKind) codes.Code {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return codes.Internal
}

// kindStatus строит статус с ErrorInfo, в Reason которого лежит класс ошибки.
func kindStatus(kind domain.ErrorKind, message string) error {
	st := status.New(codeForKind(kind), message)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(kind),
		Domain: shopv1.ErrorDomain,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// toStatus переводит ошибку сервиса в gRPC-статус. Текст внутренних ошибок
// клиенту не отдаётся.
func toStatus(logger *log.Entry, operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}

	kind := domain.Kind(err)
	entry := logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"kind":      string(kind),
	})
	switch kind {
	case domain.KindInternal:
		entry.Error("request failed")
		return kindStatus(kind, internalErrorMessage)
	case domain.KindPersistenceUnavailable:
		entry.Warn("request failed, storage unavailable")
		return kindStatus(kind, domain.ErrPersistenceUnavailable.Error())
	default:
		entry.Debug("request rejected")
		return kindStatus(kind, publicMessage(err))
	}
}

// publicMessage возвращает текст доменной ошибки без обёрток инфраструктуры.
func publicMessage(err error) string {
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

var publicErrors = []error{
	domain.ErrNotAuthenticated,
	domain.ErrSessionNotFound,
	domain.ErrProductNotFound,
	domain.ErrOutOfStock,
	domain.ErrInvalidQuantity,
	domain.ErrItemQtyInvalid,
	domain.ErrNoActiveOrder,
	domain.ErrItemNotInCart,
	domain.ErrEmptyCart,
	domain.ErrDuplicateUsername,
	domain.ErrDuplicateEmail,
	domain.ErrInvalidCredentials,
	domain.ErrCustomerNotFound,
	domain.ErrPermissionDenied,
	domain.ErrProductAlreadyExists,
	domain.ErrIdempotencyHashMismatch,
	domain.ErrIdempotencyKeyAlreadyExists,
}
