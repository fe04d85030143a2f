package settings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// DefaultLowStockThreshold applies until an admin saves settings.
const DefaultLowStockThreshold = 5

// Settings are the site-wide knobs administrators can change.
type Settings struct {
	ApplicationFee        pricing.Money         `json:"applicationFee"`
	LowStockThreshold     int                   `json:"lowStockThreshold"`
	EnabledPaymentMethods []order.PaymentMethod `json:"enabledPaymentMethods"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// Defaults returns the settings used before anything has been saved.
func Defaults() Settings {
	return Settings{
		ApplicationFee:        decimal.Zero,
		LowStockThreshold:     DefaultLowStockThreshold,
		EnabledPaymentMethods: order.AllPaymentMethods(),
	}
}

// Store persists the single settings row.
type Store interface {
	// GetSettings reports ok=false when nothing has been saved yet.
	GetSettings(ctx context.Context) (Settings, bool, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// Input is the admin form payload.
type Input struct {
	ApplicationFee        pricing.Money `json:"applicationFee" validate:"gte=0"`
	LowStockThreshold     int           `json:"lowStockThreshold" validate:"gte=0"`
	EnabledPaymentMethods []string      `json:"enabledPaymentMethods" validate:"required,min=1,unique,dive,required"`
}

// Service reads and updates settings.
type Service struct {
	Store  Store
	Logger zerolog.Logger
	Now    func() time.Time
}

// Get returns the saved settings or the defaults.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	if s == nil || s.Store == nil {
		return Settings{}, errors.New("settings: store not configured")
	}
	st, ok, err := s.Store.GetSettings(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if !ok {
		return Defaults(), nil
	}
	return st, nil
}

// Update validates and stores new settings.
func (s *Service) Update(ctx context.Context, in Input) (Settings, error) {
	if s == nil || s.Store == nil {
		return Settings{}, errors.New("settings: store not configured")
	}
	if err := common.ValidateStruct(in); err != nil {
		return Settings{}, err
	}
	methods := make([]order.PaymentMethod, 0, len(in.EnabledPaymentMethods))
	for _, raw := range in.EnabledPaymentMethods {
		m := order.PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
		if !m.Valid() {
			return Settings{}, common.NewAppError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest, nil).
				WithDetails(map[string]string{"enabledPaymentMethods": fmt.Sprintf("unknown payment method %q", raw)})
		}
		if !slices.Contains(methods, m) {
			methods = append(methods, m)
		}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	st := Settings{
		ApplicationFee:        in.ApplicationFee,
		LowStockThreshold:     in.LowStockThreshold,
		EnabledPaymentMethods: methods,
		UpdatedAt:             now().UTC(),
	}
	if err := s.Store.SaveSettings(ctx, st); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.Logger.Info().
		Str("application_fee", st.ApplicationFee.String()).
		Int("low_stock_threshold", st.LowStockThreshold).
		Msg("settings_updated")
	return st, nil
}

// ApplicationFee returns the flat fee charged on online orders.
func (s *Service) ApplicationFee(ctx context.Context) (pricing.Money, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return st.ApplicationFee, nil
}

// LowStockThreshold returns the level at or below which products are flagged.
func (s *Service) LowStockThreshold(ctx context.Context) (int, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return st.LowStockThreshold, nil
}

// Handler exposes the admin settings form.
type Handler struct {
	Svc *Service
}

// Get renders the current settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}

// Put replaces the settings.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	st, err := h.Svc.Update(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}
