package shipping

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/obs"
	"github.com/noah-isme/backend-koperasi/internal/order"
)

// ReplayGuard remembers payload fingerprints. *redis.Client satisfies it.
type ReplayGuard interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Webhook applies courier status callbacks to orders.
//
// The same event is accepted once per ReplayTTL. An event that fails to apply releases
// its fingerprint so the courier can retry it. When Secret is set the event must come
// from the signed JSON body.
type Webhook struct {
	Svc       *Service
	Replay    ReplayGuard
	ReplayTTL time.Duration
	// Secret enables signature checks on SignatureHeader.
	Secret string
}

type courierEvent struct {
	OrderID        string `json:"orderId"`
	TrackingNumber string `json:"trackingNumber"`
	ExternalStatus string `json:"externalStatus"`
}

// Handle serves POST /shipping/webhook/{courier}.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Replay == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping webhook not configured", nil)
		return
	}
	courier := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "courier")))
	if courier == "" {
		courier = "unknown"
	}
	ctx, span := otel.Tracer("shipping").Start(r.Context(), "shipping.webhook")
	defer span.End()
	span.SetAttributes(attribute.String("shipping.courier", courier))

	outcome := "error"
	defer func() { obs.ObserveShippingWebhook(courier, outcome) }()
	fail := func(err error, status int, code, msg string) {
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		common.JSONError(w, status, code, msg, nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		fail(err, http.StatusBadRequest, "BAD_REQUEST", "unable to read payload")
		return
	}
	signed := h.Secret != ""
	if signed && (len(body) == 0 || !common.VerifyBody(h.Secret, body, r.Header.Get(common.SignatureHeader))) {
		outcome = "unauthorized"
		fail(errors.New("bad signature"), http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed")
		return
	}

	// query parameters are unsigned, so they only count when no secret is configured
	ev, err := parseCourierEvent(body, r, !signed)
	if err != nil {
		fail(err, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	to, ok := MapExternalToStatus(ev.ExternalStatus)
	if !ok {
		fail(errors.New("unknown status"), http.StatusBadRequest, "BAD_REQUEST", "unrecognised external status")
		return
	}
	span.SetAttributes(attribute.String("shipping.order_id", ev.OrderID))

	fp := fingerprint(courier, ev)
	fresh, err := h.Replay.SetNX(ctx, fp, time.Now().UTC().Format(time.RFC3339), h.replayTTL()).Result()
	if err != nil {
		fail(err, http.StatusInternalServerError, "INTERNAL", "replay protection failed")
		return
	}
	if !fresh {
		outcome = "replay"
		span.AddEvent("replay rejected")
		common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook payload", nil)
		return
	}

	status, applied, appErr := h.apply(ctx, ev, to)
	if appErr != nil {
		_ = h.Replay.Del(context.WithoutCancel(ctx), fp).Err()
		span.RecordError(appErr)
		span.SetStatus(codes.Error, common.ErrorCode(appErr))
		common.WriteError(w, appErr)
		return
	}
	span.SetAttributes(attribute.String("shipping.status", string(status)))
	outcome = "noop"
	if applied {
		outcome = "success"
	}
	w.WriteHeader(http.StatusNoContent)
}

// apply moves the order to the mapped status. applied is false when nothing changed.
func (h Webhook) apply(ctx context.Context, ev courierEvent, to order.Status) (order.Status, bool, error) {
	o, err := h.Svc.Store.GetOrder(ctx, ev.OrderID)
	if err != nil {
		return "", false, toAppError(err)
	}
	if ev.TrackingNumber != "" && o.TrackingNumber != "" && !strings.EqualFold(ev.TrackingNumber, o.TrackingNumber) {
		return "", false, common.NewAppError("TRACKING_MISMATCH", "tracking number does not match order", http.StatusConflict, nil)
	}
	// pickup scheduling is owned by Assign; the courier only confirms it
	if o.Status == to || to == order.StatusPendingPickup {
		return o.Status, false, nil
	}
	if _, err := h.Svc.UpdateStatus(ctx, o.ID, to); err != nil {
		return "", false, toAppError(err)
	}
	return to, true, nil
}

func (h Webhook) replayTTL() time.Duration {
	if h.ReplayTTL <= 0 {
		return 24 * time.Hour
	}
	return h.ReplayTTL
}

func fingerprint(courier string, ev courierEvent) string {
	canonical := strings.Join([]string{
		ev.OrderID,
		strings.ToUpper(ev.TrackingNumber),
		strings.ToLower(ev.ExternalStatus),
	}, "\x00")
	sum := sha256.Sum256([]byte(canonical))
	return "koperasi:shwh:" + courier + ":" + hex.EncodeToString(sum[:])
}

// parseCourierEvent reads the JSON body. With fromQuery set, missing fields fall back to
// query parameters for couriers that send form style callbacks.
func parseCourierEvent(body []byte, r *http.Request, fromQuery bool) (courierEvent, error) {
	var ev courierEvent
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &ev); err != nil {
			return courierEvent{}, errors.New("payload is not valid JSON")
		}
	}
	q := r.URL.Query()
	fill := func(dst *string, key string) {
		if *dst == "" && fromQuery {
			*dst = q.Get(key)
		}
		*dst = strings.TrimSpace(*dst)
	}
	fill(&ev.OrderID, "orderId")
	fill(&ev.TrackingNumber, "tracking")
	fill(&ev.ExternalStatus, "status")
	switch {
	case ev.OrderID == "":
		return courierEvent{}, errors.New("orderId is required")
	case ev.ExternalStatus == "":
		return courierEvent{}, errors.New("status is required")
	}
	return ev, nil
}
