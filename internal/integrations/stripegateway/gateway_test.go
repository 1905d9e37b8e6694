package stripegateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

const testWebhookSecret = "whsec_test_secret"

func newTestGateway(baseURL string) *Gateway {
	return New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		BaseURL:       baseURL,
	}, logger.NewNop())
}

func sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

func TestVerifySignature(t *testing.T) {
	g := newTestGateway("")
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded"}`)

	t.Run("valid signature", func(t *testing.T) {
		assert.NoError(t, g.VerifySignature(payload, sign(payload, testWebhookSecret)))
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := g.VerifySignature(payload, sign(payload, "whsec_other"))
		assert.ErrorIs(t, err, ErrSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		header := sign(payload, testWebhookSecret)
		err := g.VerifySignature([]byte(`{"id":"evt_2"}`), header)
		assert.ErrorIs(t, err, ErrSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, g.VerifySignature(payload, ""), ErrSignature)
	})
}

func TestSignatureFromHeader(t *testing.T) {
	g := newTestGateway("")
	h := http.Header{}
	h.Set("Stripe-Signature", "t=1,v1=abc")

	assert.Equal(t, "t=1,v1=abc", g.SignatureFromHeader(h))
}

func TestParseEvent(t *testing.T) {
	g := newTestGateway("")

	t.Run("succeeded intent", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_succeeded",
			"object": "event",
			"type": "payment_intent.succeeded",
			"data": {"object": {"id": "pi_123", "object": "payment_intent", "status": "succeeded",
				"metadata": {"booking_id": "7", "payment_id": "42"}}}
		}`)

		event, err := g.ParseEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, "evt_succeeded", event.EventID)
		assert.Equal(t, domain.GatewayEventCaptured, event.Kind)
		assert.Equal(t, domain.MethodGatewayA, event.Method)
		assert.Equal(t, "pi_123", event.GatewayReference)
		assert.Equal(t, int64(42), event.PaymentID)
	})

	t.Run("failed intent carries the reason", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_failed",
			"object": "event",
			"type": "payment_intent.payment_failed",
			"data": {"object": {"id": "pi_456", "object": "payment_intent", "status": "requires_payment_method",
				"last_payment_error": {"type": "card_error", "message": "Your card was declined."}}}
		}`)

		event, err := g.ParseEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, domain.GatewayEventFailed, event.Kind)
		assert.Equal(t, "pi_456", event.GatewayReference)
		assert.Equal(t, int64(0), event.PaymentID)
		assert.Equal(t, "Your card was declined.", event.FailureReason)
	})

	t.Run("other types are ignored", func(t *testing.T) {
		event, err := g.ParseEvent([]byte(`{"id": "evt_c", "object": "event", "type": "customer.created"}`))
		require.NoError(t, err)
		assert.Equal(t, domain.GatewayEventIgnored, event.Kind)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := g.ParseEvent([]byte(`not json`))
		assert.ErrorIs(t, err, ErrPayload)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := g.ParseEvent([]byte(`{"type": "payment_intent.succeeded"}`))
		assert.ErrorIs(t, err, ErrPayload)
	})
}

func TestChargeStatus(t *testing.T) {
	tests := []struct {
		status stripe.PaymentIntentStatus
		want   domain.ChargeStatus
	}{
		{stripe.PaymentIntentStatusSucceeded, domain.ChargeCaptured},
		{stripe.PaymentIntentStatusProcessing, domain.ChargePending},
		{stripe.PaymentIntentStatusRequiresAction, domain.ChargePending},
		{stripe.PaymentIntentStatusRequiresCapture, domain.ChargePending},
		{stripe.PaymentIntentStatusRequiresPaymentMethod, domain.ChargeFailed},
		{stripe.PaymentIntentStatusCanceled, domain.ChargeFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, chargeStatus(tt.status))
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(15000), toMinorUnits(decimal.RequireFromString("150")))
	assert.Equal(t, int64(1999), toMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1), toMinorUnits(decimal.RequireFromString("0.005")))
}

func TestCreateCharge(t *testing.T) {
	t.Run("captured", func(t *testing.T) {
		var gotIdempotencyKey, gotAmount, gotCurrency, gotPaymentID string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotIdempotencyKey = r.Header.Get("Idempotency-Key")
			gotAmount = r.PostForm.Get("amount")
			gotCurrency = r.PostForm.Get("currency")
			gotPaymentID = r.PostForm.Get("metadata[payment_id]")

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "pi_ok", "object": "payment_intent", "status": "succeeded"}`))
		}))
		defer server.Close()

		g := newTestGateway(server.URL)
		result, err := g.CreateCharge(context.Background(), &domain.ChargeRequest{
			Amount:         decimal.RequireFromString("150.00"),
			Currency:       "SAR",
			SourceToken:    "pm_card_visa",
			Metadata:       map[string]string{"booking_id": "7", "payment_id": "42"},
			IdempotencyKey: "payment-42",
		})

		require.NoError(t, err)
		assert.Equal(t, "pi_ok", result.Reference)
		assert.Equal(t, domain.ChargeCaptured, result.Status)
		assert.NotEmpty(t, result.Raw)

		assert.Equal(t, "payment-42", gotIdempotencyKey)
		assert.Equal(t, "15000", gotAmount)
		assert.Equal(t, "sar", gotCurrency)
		assert.Equal(t, "42", gotPaymentID)
	})

	t.Run("card error is a decline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error": {"type": "card_error", "code": "card_declined", "message": "Your card was declined."}}`))
		}))
		defer server.Close()

		g := newTestGateway(server.URL)
		_, err := g.CreateCharge(context.Background(), &domain.ChargeRequest{
			Amount:         decimal.RequireFromString("10"),
			Currency:       "SAR",
			SourceToken:    "pm_card_chargeDeclined",
			IdempotencyKey: "payment-1",
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrChargeDeclined))
	})

	t.Run("server error is not a decline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"type": "api_error", "message": "boom"}}`))
		}))
		defer server.Close()

		g := newTestGateway(server.URL)
		_, err := g.CreateCharge(context.Background(), &domain.ChargeRequest{
			Amount:         decimal.RequireFromString("10"),
			Currency:       "SAR",
			SourceToken:    "pm_card_visa",
			IdempotencyKey: "payment-2",
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRequest)
		assert.False(t, errors.Is(err, domain.ErrChargeDeclined))
	})
}

func TestFindCharge(t *testing.T) {
	t.Run("found by payment id", func(t *testing.T) {
		var gotPath, gotQuery string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query().Get("query")

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object": "search_result", "url": "/v1/payment_intents/search", "has_more": false,
				"data": [{"id": "pi_late", "object": "payment_intent", "status": "succeeded", "metadata": {"payment_id": "42"}}]}`))
		}))
		defer server.Close()

		result, err := newTestGateway(server.URL).FindCharge(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, "pi_late", result.Reference)
		assert.Equal(t, domain.ChargeCaptured, result.Status)

		assert.Equal(t, "/v1/payment_intents/search", gotPath)
		assert.Equal(t, "metadata['payment_id']:'42'", gotQuery)
	})

	t.Run("no payment intent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object": "search_result", "url": "/v1/payment_intents/search", "has_more": false, "data": []}`))
		}))
		defer server.Close()

		_, err := newTestGateway(server.URL).FindCharge(context.Background(), 42)
		assert.ErrorIs(t, err, domain.ErrChargeNotFound)
	})

	t.Run("search failure is not a missing charge", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"type": "api_error", "message": "boom"}}`))
		}))
		defer server.Close()

		_, err := newTestGateway(server.URL).FindCharge(context.Background(), 42)
		assert.ErrorIs(t, err, ErrRequest)
		assert.False(t, errors.Is(err, domain.ErrChargeNotFound))
	})
}
