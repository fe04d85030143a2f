package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/settings"
)

// OrderSubmitter places orders against live stock.
type OrderSubmitter interface {
	Submit(ctx context.Context, in order.SubmitInput) (order.Order, error)
}

// SettingsSource supplies the current fee and enabled payment methods.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Input is the checkout form posted by the storefront or the POS screen.
type Input struct {
	Items           []order.LineRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string              `json:"paymentMethod" validate:"required"`
	BankName        string              `json:"bankName,omitempty" validate:"required_if=PaymentMethod BANK_TRANSFER"`
	WalletProvider  string              `json:"walletProvider,omitempty" validate:"required_if=PaymentMethod DIGITAL_WALLET"`
	ShippingAddress string              `json:"shippingAddress,omitempty"`
}

// Service turns checkout forms into submitted orders.
type Service struct {
	Orders   OrderSubmitter
	Settings SettingsSource
}

// Online places a storefront order. The application fee and the enabled payment
// methods come from the site settings.
func (s *Service) Online(ctx context.Context, userID string, in Input) (order.Order, error) {
	if s == nil || s.Orders == nil || s.Settings == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	st, err := s.Settings.Get(ctx)
	if err != nil {
		return order.Order{}, fmt.Errorf("load settings: %w", err)
	}
	return s.Orders.Submit(ctx, order.SubmitInput{
		UserID:          userID,
		Channel:         order.ChannelOnline,
		Lines:           in.Items,
		PaymentMethod:   order.PaymentMethod(in.PaymentMethod),
		BankName:        in.BankName,
		WalletProvider:  in.WalletProvider,
		ShippingAddress: in.ShippingAddress,
		ApplicationFee:  st.ApplicationFee,
		AllowedMethods:  st.EnabledPaymentMethods,
	})
}

// POS records a counter sale. No application fee is charged and only the counter
// payment methods are accepted.
func (s *Service) POS(ctx context.Context, cashierID string, in Input) (order.Order, error) {
	if s == nil || s.Orders == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	return s.Orders.Submit(ctx, order.SubmitInput{
		UserID:         cashierID,
		Channel:        order.ChannelPOS,
		Lines:          in.Items,
		PaymentMethod:  order.PaymentMethod(in.PaymentMethod),
		BankName:       in.BankName,
		WalletProvider: in.WalletProvider,
		ApplicationFee: decimal.Zero,
		AllowedMethods: order.POSPaymentMethods(),
	})
}
