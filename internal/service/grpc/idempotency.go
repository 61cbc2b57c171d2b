package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Области ключей для запросов без клиентской сессии.
const (
	scopeAnonymous = "anon"
	scopeAdmin     = "admin"
)

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// withIdempotency выполняет handler не больше одного раза на ключ из metadata.
// Без ключа запрос выполняется как обычно. Ключ действует в пределах scope,
// поэтому одинаковые ключи разных клиентов не пересекаются.
func withIdempotency[Req any, Resp any](
	s *ShopService,
	ctx context.Context,
	scope string,
	method string,
	req *Req,
	handler func(context.Context) (*Resp, error),
) (*Resp, error) {
	rawKey := metadataValue(ctx, shopv1.MetadataIdempotencyKey)
	if s.idempotency == nil || rawKey == "" {
		return handler(ctx)
	}
	key := domain.ScopedIdempotencyKey(scope, rawKey)

	reqHash, err := requestHash(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idempotency.CreateProcessing(ctx, key, reqHash, s.now().Add(s.idempotencyTTL))
	if err != nil {
		return replay[Resp](s, method, key, err, record)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		s.settleFailure(ctx, key, runErr)
		return nil, runErr
	}

	body, err := json.Marshal(resp)
	if err == nil {
		err = s.idempotency.MarkDone(ctx, key, body, int(codes.OK))
	}
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
	return resp, nil
}

func replay[Resp any](s *ShopService, method, key string, createErr error, record domain.IdempotencyRecord) (*Resp, error) {
	if errors.Is(createErr, domain.ErrIdempotencyHashMismatch) {
		return nil, toStatus(s.logger, method, createErr)
	}
	if !errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists) {
		return nil, toStatus(s.logger, method, createErr)
	}

	switch record.Status {
	case domain.IdempotencyStatusDone:
		resp := new(Resp)
		if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to decode cached idempotency response")
			return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
		}
		return resp, nil
	case domain.IdempotencyStatusProcessing:
		return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
	case domain.IdempotencyStatusFailed:
		return nil, decodeFailure(record)
	default:
		return nil, status.Error(codes.Internal, "unknown idempotency record status")
	}
}

// settleFailure запоминает окончательный отказ. После временного сбоя ключ
// освобождается, и клиент может повторить запрос с тем же ключом.
func (s *ShopService) settleFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	if st.Code() == codes.Unavailable || st.Code() == codes.Canceled || st.Code() == codes.Aborted {
		if err := s.idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to release idempotency key")
		}
		return
	}

	payload, err := json.Marshal(idempotencyErrorPayload{
		Code:    int32(st.Code()), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
		Reason:  shopv1.ErrorReason(runErr),
	})
	if err != nil {
		payload = nil
	}
	if err := s.idempotency.MarkFailed(context.WithoutCancel(ctx), key, payload, int(st.Code())); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeFailure(record domain.IdempotencyRecord) error {
	var payload idempotencyErrorPayload
	if len(record.ResponseBody) == 0 || json.Unmarshal(record.ResponseBody, &payload) != nil {
		return status.Error(codes.Internal, "previous request with the same idempotency key failed")
	}
	if payload.Message == "" {
		payload.Message = "previous request with the same idempotency key failed"
	}
	if payload.Reason != "" {
		return kindStatus(domain.ErrorKind(payload.Reason), payload.Message)
	}
	code, ok := grpcCode(payload.Code)
	if !ok || code == codes.OK {
		code = codes.Internal
	}
	return status.Error(code, payload.Message)
}

func grpcCode(value int32) (codes.Code, bool) {
	if value < int32(codes.OK) || value > int32(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

func requestHash(method string, req any) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{':'})
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil)), nil
}
