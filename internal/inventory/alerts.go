package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/lock"
	"github.com/noah-isme/backend-koperasi/internal/obs"
)

// TaskTypeLowStock is the asynq task type carrying low stock alerts.
const TaskTypeLowStock = "inventory:low_stock"

// LowStockAlert is the task payload.
type LowStockAlert struct {
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Stock       int       `json:"stock"`
	Threshold   int       `json:"threshold"`
	OrderID     string    `json:"orderId"`
	RaisedAt    time.Time `json:"raisedAt"`
}

// Enqueuer hands alerts to the background worker.
type Enqueuer interface {
	EnqueueLowStock(ctx context.Context, alert LowStockAlert) error
}

// AsynqEnqueuer enqueues alerts as asynq tasks.
type AsynqEnqueuer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
}

// EnqueueLowStock implements Enqueuer.
func (e AsynqEnqueuer) EnqueueLowStock(ctx context.Context, alert LowStockAlert) error {
	if e.Client == nil {
		return errors.New("inventory: task client not configured")
	}
	task, err := NewLowStockTask(alert)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.MaxRetry(e.maxRetry())}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue low stock alert: %w", err)
	}
	return nil
}

func (e AsynqEnqueuer) maxRetry() int {
	if e.MaxRetry > 0 {
		return e.MaxRetry
	}
	return 3
}

// NewLowStockTask encodes alert as an asynq task.
func NewLowStockTask(alert LowStockAlert) (*asynq.Task, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("encode low stock alert: %w", err)
	}
	return asynq.NewTask(TaskTypeLowStock, payload), nil
}

// LowStockNotifier watches order.created events and raises an alert for every sold
// product whose remaining stock is at or below the threshold.
type LowStockNotifier struct {
	Thresholds ThresholdSource
	Queue      Enqueuer
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Notify implements events.Notifier.
func (n LowStockNotifier) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicOrderCreated || n.Queue == nil {
		return nil
	}
	var payload events.OrderCreatedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("decode order.created: %w", err)
	}
	threshold := defaultThreshold
	if n.Thresholds != nil {
		t, err := n.Thresholds.LowStockThreshold(ctx)
		if err != nil {
			return fmt.Errorf("load threshold: %w", err)
		}
		threshold = t
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	var errs []error
	for _, it := range payload.Items {
		if it.RemainingStock > threshold {
			continue
		}
		alert := LowStockAlert{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Stock:       it.RemainingStock,
			Threshold:   threshold,
			OrderID:     payload.OrderID,
			RaisedAt:    now().UTC(),
		}
		if err := n.Queue.EnqueueLowStock(ctx, alert); err != nil {
			errs = append(errs, err)
			continue
		}
		obs.ObserveLowStockAlert("enqueued")
		n.Logger.Debug().Str("product_id", it.ProductID).Int("stock", it.RemainingStock).Msg("low stock alert enqueued")
	}
	return errors.Join(errs...)
}

// AlertHandler processes low stock tasks in the worker. Alerts for the same product are
// suppressed while the dedupe claim is held.
type AlertHandler struct {
	Locker   lock.Locker
	DedupTTL time.Duration
	// Sink optionally forwards alerts outside the process. A failed delivery releases
	// the dedupe claim and returns the error so the task is retried.
	Sink   AlertSink
	Logger zerolog.Logger
}

// AlertSink delivers an alert to an external receiver.
type AlertSink interface {
	Deliver(ctx context.Context, alert LowStockAlert) error
}

// ProcessTask implements asynq.Handler.
func (h AlertHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var alert LowStockAlert
	if err := json.Unmarshal(t.Payload(), &alert); err != nil {
		return fmt.Errorf("decode low stock alert: %v: %w", err, asynq.SkipRetry)
	}
	if alert.ProductID == "" {
		return fmt.Errorf("low stock alert without product: %w", asynq.SkipRetry)
	}
	key := "lowstock:" + alert.ProductID
	claimed, err := h.Locker.Claim(ctx, key, h.DedupTTL)
	if err != nil {
		return fmt.Errorf("claim low stock alert: %w", err)
	}
	if !claimed {
		obs.ObserveLowStockAlert("suppressed")
		h.Logger.Debug().Str("product_id", alert.ProductID).Msg("low stock alert suppressed")
		return nil
	}
	if h.Sink != nil {
		if err := h.Sink.Deliver(ctx, alert); err != nil {
			if rerr := h.Locker.Release(ctx, key); rerr != nil {
				h.Logger.Error().Err(rerr).Str("product_id", alert.ProductID).Msg("release low stock claim")
			}
			obs.ObserveLowStockAlert("failed")
			return fmt.Errorf("deliver low stock alert: %w", err)
		}
	}
	obs.ObserveLowStockAlert("delivered")
	h.Logger.Warn().
		Str("product_id", alert.ProductID).
		Str("product_name", alert.ProductName).
		Int("stock", alert.Stock).
		Int("threshold", alert.Threshold).
		Str("order_id", alert.OrderID).
		Msg("low_stock_alert")
	return nil
}
