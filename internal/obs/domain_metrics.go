package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersSubmittedTotal counts order submission outcomes per sales channel.
	OrdersSubmittedTotal *prometheus.CounterVec
	// StockRejectionsTotal counts submissions rejected for insufficient stock.
	StockRejectionsTotal *prometheus.CounterVec
	// OrderSubmitLatency records how long the stock-gated transaction takes in milliseconds.
	OrderSubmitLatency *prometheus.HistogramVec
	// ShipmentTransitionsTotal counts shipping status changes by target status.
	ShipmentTransitionsTotal *prometheus.CounterVec
	// ShippingWebhookTotal counts courier callbacks by courier and outcome.
	ShippingWebhookTotal *prometheus.CounterVec
	// PurchasesRecordedTotal counts restocking purchases.
	PurchasesRecordedTotal prometheus.Counter
	// LowStockAlertsTotal counts low stock alerts by stage (enqueued, delivered, suppressed).
	LowStockAlertsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Count of order submissions by channel and outcome.",
		}, []string{"channel", "result"})
		StockRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Count of order submissions rejected for insufficient stock.",
		}, []string{"channel"})
		OrderSubmitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_submit_duration_ms",
			Help:      "Latency of the stock-gated order transaction in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"channel"})
		ShipmentTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipment_transitions_total",
			Help:      "Count of shipping status transitions by target status.",
		}, []string{"status"})
		ShippingWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_webhook_total",
			Help:      "Count of courier webhook callbacks by courier and outcome.",
		}, []string{"courier", "outcome"})
		PurchasesRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_recorded_total",
			Help:      "Total number of stock purchases recorded.",
		})
		LowStockAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Count of low stock alerts by processing stage.",
		}, []string{"stage"})

		OrdersSubmittedTotal = RegisterOrReuse(reg, OrdersSubmittedTotal)
		StockRejectionsTotal = RegisterOrReuse(reg, StockRejectionsTotal)
		OrderSubmitLatency = RegisterOrReuse(reg, OrderSubmitLatency)
		ShipmentTransitionsTotal = RegisterOrReuse(reg, ShipmentTransitionsTotal)
		ShippingWebhookTotal = RegisterOrReuse(reg, ShippingWebhookTotal)
		PurchasesRecordedTotal = RegisterOrReuse(reg, PurchasesRecordedTotal)
		LowStockAlertsTotal = RegisterOrReuse(reg, LowStockAlertsTotal)
	})
}

// ObserveOrderSubmit records a submission outcome. Safe to call before registration.
func ObserveOrderSubmit(channel, result string, millis float64) {
	if OrdersSubmittedTotal != nil {
		OrdersSubmittedTotal.WithLabelValues(channel, result).Inc()
	}
	if result == "insufficient_stock" && StockRejectionsTotal != nil {
		StockRejectionsTotal.WithLabelValues(channel).Inc()
	}
	if OrderSubmitLatency != nil && millis >= 0 {
		OrderSubmitLatency.WithLabelValues(channel).Observe(millis)
	}
}

// ObserveShipmentTransition records a shipping status change.
func ObserveShipmentTransition(status string) {
	if ShipmentTransitionsTotal != nil {
		ShipmentTransitionsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveShippingWebhook records a courier callback outcome.
func ObserveShippingWebhook(courier, outcome string) {
	if ShippingWebhookTotal != nil {
		ShippingWebhookTotal.WithLabelValues(courier, outcome).Inc()
	}
}

// ObservePurchaseRecorded records a restocking purchase.
func ObservePurchaseRecorded() {
	if PurchasesRecordedTotal != nil {
		PurchasesRecordedTotal.Inc()
	}
}

// ObserveLowStockAlert records a low stock alert stage.
func ObserveLowStockAlert(stage string) {
	if LowStockAlertsTotal != nil {
		LowStockAlertsTotal.WithLabelValues(stage).Inc()
	}
}
