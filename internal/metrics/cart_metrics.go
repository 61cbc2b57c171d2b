package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics содержит метрики движка корзины и заказов.
type CartMetrics struct {
	// Результаты операций по имени операции и классу ошибки.
	operations *prometheus.CounterVec
	// Время выполнения операций, включая транзакцию хранилища.
	operationDuration *prometheus.HistogramVec

	ordersPlaced    prometheus.Counter
	ordersCancelled prometheus.Counter
	cartsOpened     prometheus.Counter

	// Движение остатков в единицах товара.
	stockReserved prometheus.Counter
	stockRestored prometheus.Counter
	// Пропущенные возвраты остатка для удалённых из каталога товаров.
	stockRestoreSkipped prometheus.Counter

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewCartMetrics создаёт метрики в DefaultRegisterer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer создаёт метрики в указанном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_cart_operations_total",
			Help: "Total number of cart engine operations grouped by operation and result",
		}, []string{"operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_cart_operation_duration_seconds",
			Help:    "Duration of cart engine operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		cartsOpened: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_carts_opened_total",
			Help: "Total number of in-progress orders created",
		}),
		stockReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_reserved_units_total",
			Help: "Total number of stock units moved into carts",
		}),
		stockRestored: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_restored_units_total",
			Help: "Total number of stock units returned from carts",
		}),
		stockRestoreSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_restore_skipped_total",
			Help: "Total number of cart lines whose product was deleted before stock restore",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// ObserveOperation фиксирует результат и длительность операции.
// result: "ok" или класс ошибки.
func (m *CartMetrics) ObserveOperation(operation, result string, duration time.Duration) {
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *CartMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *CartMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordCartOpened увеличивает счётчик созданных корзин.
func (m *CartMetrics) RecordCartOpened() {
	m.cartsOpened.Inc()
}

// RecordStockReserved учитывает единицы товара, списанные в корзину.
func (m *CartMetrics) RecordStockReserved(units int32) {
	if units > 0 {
		m.stockReserved.Add(float64(units))
	}
}

// RecordStockRestored учитывает единицы товара, возвращённые на склад.
func (m *CartMetrics) RecordStockRestored(units int32) {
	if units > 0 {
		m.stockRestored.Add(float64(units))
	}
}

// RecordStockRestoreSkipped учитывает позицию, товар которой уже удалён.
func (m *CartMetrics) RecordStockRestoreSkipped() {
	m.stockRestoreSkipped.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CartMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CartMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
