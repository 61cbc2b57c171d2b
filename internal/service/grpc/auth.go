package grpcsvc

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc/metadata"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const bearerPrefix = "bearer "

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// sessionToken читает токен из "authorization: Bearer <token>". Токен без
// префикса тоже принимается.
func sessionToken(ctx context.Context) string {
	raw := metadataValue(ctx, shopv1.MetadataAuthorization)
	if len(raw) >= len(bearerPrefix) && strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(raw[len(bearerPrefix):])
	}
	return raw
}

// authenticate возвращает идентификатор клиента текущей сессии.
func (s *ShopService) authenticate(ctx context.Context) (string, error) {
	session, err := s.accounts.Authenticate(ctx, sessionToken(ctx))
	if err != nil {
		return "", err
	}
	return session.CustomerID, nil
}

// requireAdmin сверяет x-admin-token с настроенным токеном. Пустой токен в
// конфигурации закрывает административные методы.
func (s *ShopService) requireAdmin(ctx context.Context) error {
	if s.adminToken == "" {
		return domain.ErrPermissionDenied
	}
	provided := metadataValue(ctx, shopv1.MetadataAdminToken)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminToken)) != 1 {
		return domain.ErrPermissionDenied
	}
	return nil
}
