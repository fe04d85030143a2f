package order

import (
	"slices"
	"strings"
	"time"

	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// Channel identifies where an order was placed.
type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelPOS    Channel = "pos"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool { return c == ChannelOnline || c == ChannelPOS }

// Status is the fulfilment state of an order.
type Status string

const (
	StatusAwaitingAssignment Status = "AWAITING_ASSIGNMENT"
	StatusPendingPickup      Status = "PENDING_PICKUP"
	StatusInTransit          Status = "IN_TRANSIT"
	StatusDelivered          Status = "DELIVERED"
	StatusCancelled          Status = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusCancelled }

// ParseStatus accepts status names case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusAwaitingAssignment, StatusPendingPickup, StatusInTransit, StatusDelivered, StatusCancelled:
		return s, true
	}
	return "", false
}

// PaymentMethod records how the customer paid. Payment is recorded, not processed.
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "CASH"
	PaymentCOD           PaymentMethod = "COD"
	PaymentBankTransfer  PaymentMethod = "BANK_TRANSFER"
	PaymentDigitalWallet PaymentMethod = "DIGITAL_WALLET"
	PaymentQRIS          PaymentMethod = "QRIS"
	PaymentDebitCard     PaymentMethod = "DEBIT_CARD"
	PaymentCreditCard    PaymentMethod = "CREDIT_CARD"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentCash:          "Tunai",
	PaymentCOD:           "Cash on Delivery",
	PaymentBankTransfer:  "Transfer Bank",
	PaymentDigitalWallet: "Dompet Digital",
	PaymentQRIS:          "QRIS",
	PaymentDebitCard:     "Kartu Debit",
	PaymentCreditCard:    "Kartu Kredit",
}

// AllPaymentMethods lists every known method in display order.
func AllPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentCash, PaymentCOD, PaymentBankTransfer, PaymentDigitalWallet,
		PaymentQRIS, PaymentDebitCard, PaymentCreditCard,
	}
}

// POSPaymentMethods are the methods a cashier can take at the counter.
func POSPaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentCash, PaymentQRIS, PaymentDebitCard, PaymentCreditCard}
}

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentLabels[m]
	return ok
}

// Label returns the customer-facing name.
func (m PaymentMethod) Label() string { return paymentLabels[m] }

// Banks accepted for transfers.
var Banks = []string{"BCA", "Mandiri", "BRI", "BNI"}

// WalletProviders accepted for digital wallet payments.
var WalletProviders = []string{"GoPay", "OVO", "DANA", "ShopeePay"}

// canonicalName returns the list entry matching v regardless of case.
func canonicalName(list []string, v string) (string, bool) {
	i := slices.IndexFunc(list, func(s string) bool { return strings.EqualFold(s, v) })
	if i < 0 {
		return "", false
	}
	return list[i], true
}

// Item is the immutable snapshot of a purchased line.
type Item struct {
	ProductID   string        `json:"productId"`
	ProductName string        `json:"productName"`
	Quantity    int           `json:"quantity"`
	UnitPrice   pricing.Money `json:"unitPrice"`
	Subtotal    pricing.Money `json:"subtotal"`
	CostPrice   pricing.Money `json:"costPrice"`
}

// Order is a committed sale. Monetary fields are fixed at submission time.
type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	Channel         Channel       `json:"channel"`
	Items           []Item        `json:"items"`
	Subtotal        pricing.Money `json:"subtotal"`
	ApplicationFee  pricing.Money `json:"applicationFee"`
	Total           pricing.Money `json:"total"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	BankName        string        `json:"bankName,omitempty"`
	WalletProvider  string        `json:"walletProvider,omitempty"`
	ShippingAddress string        `json:"shippingAddress,omitempty"`
	Status          Status        `json:"status"`
	CourierID       string        `json:"courierId,omitempty"`
	TrackingNumber  string        `json:"trackingNumber,omitempty"`
	Date            time.Time     `json:"date"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	UserID    string
	CourierID string
	Channel   Channel
	Statuses  []Status
	Limit     int
	Offset    int
}

// Matches applies the filter to an order in memory.
func (f ListFilter) Matches(o Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.CourierID != "" && o.CourierID != f.CourierID {
		return false
	}
	if f.Channel != "" && o.Channel != f.Channel {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	return true
}
