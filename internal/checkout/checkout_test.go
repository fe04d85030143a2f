package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/settings"
)

type fakeSubmitter struct {
	got order.SubmitInput
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, in order.SubmitInput) (order.Order, error) {
	f.got = in
	if f.err != nil {
		return order.Order{}, f.err
	}
	return order.Order{ID: "ORD-1", UserID: in.UserID, Channel: in.Channel, Total: in.ApplicationFee}, nil
}

type fixedSettings settings.Settings

func (f fixedSettings) Get(context.Context) (settings.Settings, error) {
	return settings.Settings(f), nil
}

func newHandler(sub *fakeSubmitter) *Handler {
	return &Handler{Svc: &Service{
		Orders: sub,
		Settings: fixedSettings{
			ApplicationFee:        decimal.NewFromInt(2000),
			EnabledPaymentMethods: []order.PaymentMethod{order.PaymentCOD, order.PaymentBankTransfer},
		},
	}}
}

func post(h http.HandlerFunc, body, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if user != "" {
		req = req.WithContext(common.WithUserID(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCheckoutUsesSettings(t *testing.T) {
	sub := &fakeSubmitter{}
	h := newHandler(sub)

	rec := post(h.Checkout, `{"items":[{"productId":"p-1","quantity":2}],"paymentMethod":"COD","shippingAddress":"Jl. Braga 5"}`, "cust-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, order.ChannelOnline, sub.got.Channel)
	require.Equal(t, "cust-1", sub.got.UserID)
	require.True(t, decimal.NewFromInt(2000).Equal(sub.got.ApplicationFee))
	require.Equal(t, []order.PaymentMethod{order.PaymentCOD, order.PaymentBankTransfer}, sub.got.AllowedMethods)
	require.Equal(t, "Jl. Braga 5", sub.got.ShippingAddress)
}

func TestPOSChargesNoFee(t *testing.T) {
	sub := &fakeSubmitter{}
	h := newHandler(sub)

	rec := post(h.POSOrder, `{"items":[{"productId":"p-1","quantity":1}],"paymentMethod":"CASH"}`, "cashier-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, order.ChannelPOS, sub.got.Channel)
	require.True(t, sub.got.ApplicationFee.IsZero())
	require.Equal(t, order.POSPaymentMethods(), sub.got.AllowedMethods)
}

func TestCheckoutValidation(t *testing.T) {
	sub := &fakeSubmitter{}
	h := newHandler(sub)

	rec := post(h.Checkout, `{"items":[],"paymentMethod":"COD"}`, "cust-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h.Checkout, `{"items":[{"productId":"p-1","quantity":0}],"paymentMethod":"COD"}`, "cust-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h.Checkout, `{"items":[{"productId":"p-1","quantity":1}],"paymentMethod":"BANK_TRANSFER"}`, "cust-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)

	rec = post(h.Checkout, `{"items":[{"productId":"p-1","quantity":1}],"paymentMethod":"COD"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutMapsStockErrors(t *testing.T) {
	sub := &fakeSubmitter{err: &order.InsufficientStockError{ProductID: "p-1", ProductName: "Beras", Remaining: 1}}
	h := newHandler(sub)

	rec := post(h.Checkout, `{"items":[{"productId":"p-1","quantity":3}],"paymentMethod":"COD","shippingAddress":"x"}`, "cust-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INSUFFICIENT_STOCK", body.Error.Code)
	details := body.Error.Details.(map[string]any)
	require.Equal(t, "p-1", details["productId"])
	require.EqualValues(t, 1, details["remaining"])

	sub.err = &order.ConcurrentModificationError{ProductID: "p-1"}
	rec = post(h.Checkout, `{"items":[{"productId":"p-1","quantity":3}],"paymentMethod":"COD","shippingAddress":"x"}`, "cust-1")
	require.Equal(t, http.StatusConflict, rec.Code)
}
