package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/obs"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// Store persists orders. SubmitOrder runs fn inside one transaction; returning an
// error from fn rolls every write back.
type Store interface {
	SubmitOrder(ctx context.Context, fn func(ctx context.Context, tx SubmitTx) error) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// SubmitTx is the transactional view used while an order is being placed.
type SubmitTx interface {
	// LockProducts reads and locks the live rows of ids, which are sorted ascending.
	// Unknown ids are absent from the result.
	LockProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	// DecrementStock subtracts qty only when at least qty units remain.
	DecrementStock(ctx context.Context, productID string, qty int) (remaining int, ok bool, err error)
	InsertOrder(ctx context.Context, o Order) error
}

// CacheInvalidator drops cached product data after stock changes.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...string)
}

// LineRequest asks for quantity units of one product.
type LineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// SubmitInput is everything needed to place an order.
type SubmitInput struct {
	UserID          string
	Channel         Channel
	Lines           []LineRequest
	PaymentMethod   PaymentMethod
	BankName        string
	WalletProvider  string
	ShippingAddress string
	ApplicationFee  pricing.Money
	// AllowedMethods restricts PaymentMethod. Empty means any known method.
	AllowedMethods []PaymentMethod
}

// Submitter places orders against live stock.
type Submitter struct {
	Store  Store
	Events events.Emitter
	Cache  CacheInvalidator
	Logger zerolog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Submit validates in, then checks stock, prices and records the order in one
// transaction. Either every line is decremented and the order stored, or nothing is.
func (s *Submitter) Submit(ctx context.Context, in SubmitInput) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order: submitter not configured")
	}
	start := time.Now()
	if err := validateInput(&in); err != nil {
		return Order{}, err
	}
	quantities, ids := mergeLines(in.Lines)

	now := s.now().UTC()
	o := Order{
		ID:              s.newID(in.Channel),
		UserID:          in.UserID,
		Channel:         in.Channel,
		PaymentMethod:   in.PaymentMethod,
		BankName:        in.BankName,
		WalletProvider:  in.WalletProvider,
		ShippingAddress: in.ShippingAddress,
		ApplicationFee:  in.ApplicationFee,
		Status:          initialStatus(in.Channel),
		Date:            now,
		UpdatedAt:       now,
	}
	remaining := make(map[string]int, len(ids))

	err := s.Store.SubmitOrder(ctx, func(ctx context.Context, tx SubmitTx) error {
		locked, err := tx.LockProducts(ctx, sortedCopy(ids))
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		for _, id := range ids {
			if _, ok := locked[id]; !ok {
				return fmt.Errorf("%w: %s", ErrProductNotFound, id)
			}
		}
		// first offending line in request order
		for _, id := range ids {
			p := locked[id]
			if quantities[id] > p.Stock {
				return &InsufficientStockError{ProductID: id, ProductName: p.Name, Requested: quantities[id], Remaining: p.Stock}
			}
		}

		lines := make([]pricing.Line, 0, len(ids))
		o.Items = make([]Item, 0, len(ids))
		for _, id := range ids {
			p := locked[id]
			line := pricing.Line{Product: p.Pricing(), Quantity: quantities[id]}
			lines = append(lines, line)
			o.Items = append(o.Items, Item{
				ProductID:   id,
				ProductName: p.Name,
				Quantity:    quantities[id],
				UnitPrice:   pricing.ResolveUnitPrice(line.Product, line.Quantity),
				Subtotal:    pricing.LineTotal(line),
				CostPrice:   p.CostPrice,
			})
		}
		o.Total = pricing.ComputeOrderTotal(lines, in.ApplicationFee)
		o.Subtotal = o.Total.Sub(in.ApplicationFee)

		for _, id := range ids {
			left, ok, err := tx.DecrementStock(ctx, id, quantities[id])
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			if !ok {
				return &ConcurrentModificationError{ProductID: id}
			}
			remaining[id] = left
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	elapsed := obs.DurationMillis(time.Since(start))
	if err != nil {
		result := resultLabel(err)
		obs.ObserveOrderSubmit(string(in.Channel), result, elapsed)
		s.Logger.Info().Err(err).
			Str("channel", string(in.Channel)).
			Str("user_id", in.UserID).
			Str("result", result).
			Msg("order_rejected")
		return Order{}, err
	}

	obs.ObserveOrderSubmit(string(in.Channel), "ok", elapsed)
	s.Logger.Info().
		Str("order_id", o.ID).
		Str("channel", string(o.Channel)).
		Str("user_id", o.UserID).
		Str("total", o.Total.String()).
		Int("lines", len(o.Items)).
		Msg("order_submitted")

	if s.Cache != nil {
		s.Cache.InvalidateProducts(ctx, ids...)
	}
	s.emitCreated(ctx, o, remaining)
	return o, nil
}

func (s *Submitter) emitCreated(ctx context.Context, o Order, remaining map[string]int) {
	if s.Events == nil {
		return
	}
	payload := events.OrderCreatedPayload{
		OrderID: o.ID,
		Channel: string(o.Channel),
		UserID:  o.UserID,
		Total:   o.Total.String(),
		Items:   make([]events.OrderItemChange, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, events.OrderItemChange{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			RemainingStock: remaining[it.ProductID],
		})
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, o.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", o.ID).Msg("order.created emit failed")
	}
}

func (s *Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Submitter) newID(ch Channel) string {
	if s.NewID != nil {
		return s.NewID()
	}
	prefix := "ORD-"
	if ch == ChannelPOS {
		prefix = "POS-"
	}
	return prefix + strings.ToUpper(uuid.NewString())
}

func initialStatus(ch Channel) Status {
	if ch == ChannelPOS {
		return StatusDelivered
	}
	return StatusAwaitingAssignment
}

func validateInput(in *SubmitInput) error {
	in.UserID = strings.TrimSpace(in.UserID)
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.BankName = strings.TrimSpace(in.BankName)
	in.WalletProvider = strings.TrimSpace(in.WalletProvider)
	in.PaymentMethod = PaymentMethod(strings.ToUpper(strings.TrimSpace(string(in.PaymentMethod))))

	if in.UserID == "" {
		return invalidInput("user is required")
	}
	if !in.Channel.Valid() {
		return invalidInput(fmt.Sprintf("unknown channel %q", in.Channel))
	}
	if len(in.Lines) == 0 {
		return invalidInput("at least one item is required")
	}
	for i, l := range in.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return invalidInput(fmt.Sprintf("item %d: product id is required", i))
		}
		if l.Quantity <= 0 {
			return invalidInput(fmt.Sprintf("item %d: quantity must be positive", i))
		}
	}
	if in.ApplicationFee.IsNegative() {
		return invalidInput("application fee must not be negative")
	}
	if !in.PaymentMethod.Valid() {
		return invalidInput(fmt.Sprintf("unknown payment method %q", in.PaymentMethod))
	}
	if len(in.AllowedMethods) > 0 && !slices.Contains(in.AllowedMethods, in.PaymentMethod) {
		return invalidInput(fmt.Sprintf("payment method %s is not available", in.PaymentMethod))
	}
	switch in.PaymentMethod {
	case PaymentBankTransfer:
		name, ok := canonicalName(Banks, in.BankName)
		if !ok {
			return invalidInput("bank name must be one of " + strings.Join(Banks, ", "))
		}
		in.BankName = name
	case PaymentDigitalWallet:
		name, ok := canonicalName(WalletProviders, in.WalletProvider)
		if !ok {
			return invalidInput("wallet provider must be one of " + strings.Join(WalletProviders, ", "))
		}
		in.WalletProvider = name
	}
	if in.Channel == ChannelOnline && in.ShippingAddress == "" {
		return invalidInput("shipping address is required")
	}
	return nil
}

// mergeLines sums quantities per product and keeps first-seen order.
func mergeLines(lines []LineRequest) (map[string]int, []string) {
	quantities := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		id := strings.TrimSpace(l.ProductID)
		if _, seen := quantities[id]; !seen {
			ids = append(ids, id)
		}
		quantities[id] += l.Quantity
	}
	return quantities, ids
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func resultLabel(err error) string {
	var stockErr *InsufficientStockError
	var concErr *ConcurrentModificationError
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &concErr):
		return "concurrent_modification"
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
