package shopv1

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// ErrorDomain кладётся в ErrorInfo.Domain всех ошибок сервиса.
const ErrorDomain = "shop.v1"

// Значения ErrorInfo.Reason. Совпадают с классами ошибок сервиса.
const (
	ReasonNotAuthenticated       = "not_authenticated"
	ReasonProductNotFound        = "product_not_found"
	ReasonOutOfStock             = "out_of_stock"
	ReasonInvalidQuantity        = "invalid_quantity"
	ReasonNoActiveOrder          = "no_active_order"
	ReasonItemNotInCart          = "item_not_in_cart"
	ReasonEmptyCart              = "empty_cart"
	ReasonStockLimit             = "stock_limit"
	ReasonDuplicateUsername      = "duplicate_username"
	ReasonDuplicateEmail         = "duplicate_email"
	ReasonPersistenceUnavailable = "persistence_unavailable"
	ReasonInvalidCredentials     = "invalid_credentials"
	ReasonPermissionDenied       = "permission_denied"
)

// ErrorReason достаёт Reason из ErrorInfo в статусе ошибки. Для ошибок без
// деталей возвращает пустую строку.
func ErrorReason(err error) string {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return ""
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}
