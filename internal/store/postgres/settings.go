package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/settings"
)

// GetSettings reads the single settings row.
func (s *Store) GetSettings(ctx context.Context) (settings.Settings, bool, error) {
	var (
		out     settings.Settings
		methods []string
	)
	err := s.pool.QueryRow(ctx, `SELECT application_fee, low_stock_threshold, enabled_payment_methods, updated_at
		FROM store_settings WHERE id = 1`).Scan(&out.ApplicationFee, &out.LowStockThreshold, &methods, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.Settings{}, false, nil
	}
	if err != nil {
		return settings.Settings{}, false, fmt.Errorf("get settings: %w", err)
	}
	out.EnabledPaymentMethods = make([]order.PaymentMethod, len(methods))
	for i, m := range methods {
		out.EnabledPaymentMethods[i] = order.PaymentMethod(m)
	}
	return out, true, nil
}

// SaveSettings upserts the settings row.
func (s *Store) SaveSettings(ctx context.Context, in settings.Settings) error {
	methods := make([]string, len(in.EnabledPaymentMethods))
	for i, m := range in.EnabledPaymentMethods {
		methods[i] = string(m)
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO store_settings (id, application_fee, low_stock_threshold, enabled_payment_methods, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			application_fee = EXCLUDED.application_fee,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			enabled_payment_methods = EXCLUDED.enabled_payment_methods,
			updated_at = EXCLUDED.updated_at`,
		in.ApplicationFee, in.LowStockThreshold, methods, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// InsertEvent persists a domain event and returns it with its id.
func (s *Store) InsertEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	payload := []byte(ev.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4) RETURNING id`, ev.Topic, ev.AggregateID, payload, ev.OccurredAt).Scan(&ev.ID)
	if err != nil {
		return events.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}
