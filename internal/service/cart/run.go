package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// effects накапливает побочные эффекты транзакции, которые применяются
// к метрикам и логам только после коммита.
type effects struct {
	opened    bool
	placed    bool
	cancelled bool
	reserved  int32
	restored  int32
	skipped   []domain.OrderItem
	timeline  int
	outbox    int
}

func (e *Engine) run(
	ctx context.Context,
	operation, customerID string,
	fn func(ctx context.Context, tx domain.Tx, fx *effects) error,
) error {
	start := time.Now()
	logger := e.logger.WithFields(log.Fields{
		"operation":   operation,
		"customer_id": customerID,
	})

	var fx effects
	var err error
	if customerID == "" {
		err = domain.ErrNotAuthenticated
	} else {
		err = e.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			// Хранилище может повторить транзакцию: эффекты прошлой попытки отбрасываются.
			fx = effects{}
			return fn(ctx, tx, &fx)
		})
	}

	kind := domain.Kind(err)
	if e.metrics != nil {
		result := "ok"
		if err != nil {
			result = string(kind)
		}
		e.metrics.ObserveOperation(operation, result, time.Since(start))
	}

	if err != nil {
		switch kind {
		case domain.KindPersistenceUnavailable, domain.KindInternal:
			logger.WithError(err).Error("cart operation failed")
		default:
			logger.WithError(err).Debug("cart operation rejected")
		}
		return err
	}

	e.apply(logger, fx)
	return nil
}

func (e *Engine) apply(logger *log.Entry, fx effects) {
	for _, item := range fx.skipped {
		logger.WithFields(log.Fields{
			"order_item_id": item.ID,
			"product_id":    item.ProductID,
			"qty":           item.Qty,
		}).Warn("product no longer exists, stock restore skipped")
	}

	if e.metrics == nil {
		return
	}
	if fx.opened {
		e.metrics.RecordCartOpened()
	}
	if fx.placed {
		e.metrics.RecordOrderPlaced()
	}
	if fx.cancelled {
		e.metrics.RecordOrderCancelled()
	}
	e.metrics.RecordStockReserved(fx.reserved)
	e.metrics.RecordStockRestored(fx.restored)
	for range fx.skipped {
		e.metrics.RecordStockRestoreSkipped()
	}
	for i := 0; i < fx.timeline; i++ {
		e.metrics.RecordTimelineEvent()
	}
	for i := 0; i < fx.outbox; i++ {
		e.metrics.RecordOutboxEvent()
	}
}

func encodeOrderEvent(order domain.Order, stock []domain.StockChange, occurred time.Time) ([]byte, error) {
	payload, err := json.Marshal(domain.OrderEvent{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		AmountMinor: order.AmountMinor,
		ItemCount:   len(order.Items),
		Stock:       stock,
		OccurredAt:  occurred,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}
	return payload, nil
}
