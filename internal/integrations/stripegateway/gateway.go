package stripegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// ProviderName имя провайдера в пути вебхука
const ProviderName = "stripe"

const signatureHeader = "Stripe-Signature"

// Config параметры подключения к Stripe
type Config struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL переопределяет адрес API (для тестов)
	BaseURL string
}

// Gateway адаптер gateway-A поверх Stripe PaymentIntents
type Gateway struct {
	api           *client.API
	webhookSecret string
	log           Logger
}

// New создает адаптер Stripe
func New(cfg Config, log Logger) *Gateway {
	var backends *stripe.Backends
	if cfg.BaseURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.BaseURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	return &Gateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}
}

// CreateCharge создает и сразу подтверждает PaymentIntent
func (g *Gateway) CreateCharge(ctx context.Context, req *domain.ChargeRequest) (*domain.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(toStripeCurrency(req.Currency)),
		PaymentMethod: stripe.String(req.SourceToken),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			g.log.Warn("CreateCharge: card declined for %s: %s", req.IdempotencyKey, stripeErr.Msg)
			return nil, fmt.Errorf("%w: %s", domain.ErrChargeDeclined, stripeErr.Msg)
		}
		return nil, fmt.Errorf("%w: create payment intent: %v", ErrRequest, err)
	}

	return toChargeResult(pi), nil
}

// GetCharge возвращает текущее состояние PaymentIntent
func (g *Gateway) GetCharge(ctx context.Context, reference string) (*domain.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		return nil, fmt.Errorf("%w: get payment intent %s: %v", ErrRequest, reference, err)
	}

	return toChargeResult(pi), nil
}

// FindCharge ищет PaymentIntent по payment_id в метаданных.
// Пустой результат поиска означает, что списание в Stripe не создавалось.
func (g *Gateway) FindCharge(ctx context.Context, paymentID int64) (*domain.ChargeResult, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Query = fmt.Sprintf("metadata['payment_id']:'%d'", paymentID)
	params.Context = ctx

	iter := g.api.PaymentIntents.Search(params)
	if iter.Next() {
		return toChargeResult(iter.PaymentIntent()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: search payment intents for payment %d: %v", ErrRequest, paymentID, err)
	}

	return nil, fmt.Errorf("%w: payment %d", domain.ErrChargeNotFound, paymentID)
}

// SignatureFromHeader достает подпись Stripe из заголовков
func (g *Gateway) SignatureFromHeader(header http.Header) string {
	return header.Get(signatureHeader)
}

// VerifySignature проверяет подпись вебхука секретом эндпоинта
func (g *Gateway) VerifySignature(payload []byte, signature string) error {
	if err := webhook.ValidatePayload(payload, signature, g.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return nil
}

// ParseEvent разбирает событие Stripe в событие сверки.
// Учитываются payment_intent.succeeded и payment_intent.payment_failed, остальные игнорируются.
func (g *Gateway) ParseEvent(payload []byte) (*domain.GatewayEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	if event.ID == "" {
		return nil, fmt.Errorf("%w: event id is missing", ErrPayload)
	}

	result := &domain.GatewayEvent{
		Provider:  ProviderName,
		Method:    domain.MethodGatewayA,
		EventID:   event.ID,
		EventType: string(event.Type),
		Kind:      domain.GatewayEventIgnored,
		Raw:       payload,
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		result.Kind = domain.GatewayEventCaptured
	case stripe.EventTypePaymentIntentPaymentFailed:
		result.Kind = domain.GatewayEventFailed
	default:
		return result, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: event data is missing", ErrPayload)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: payment intent: %v", ErrPayload, err)
	}

	result.GatewayReference = pi.ID
	result.PaymentID = paymentIDFromMetadata(pi.Metadata)
	if pi.LastPaymentError != nil {
		result.FailureReason = pi.LastPaymentError.Msg
	}

	return result, nil
}

func toChargeResult(pi *stripe.PaymentIntent) *domain.ChargeResult {
	result := &domain.ChargeResult{
		Reference: pi.ID,
		Status:    chargeStatus(pi.Status),
	}

	if pi.LastPaymentError != nil {
		result.FailureReason = pi.LastPaymentError.Msg
	}

	if raw, err := json.Marshal(pi); err == nil {
		result.Raw = raw
	}

	return result
}

func chargeStatus(status stripe.PaymentIntentStatus) domain.ChargeStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.ChargeCaptured
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return domain.ChargeFailed
	default:
		return domain.ChargePending
	}
}

func paymentIDFromMetadata(metadata map[string]string) int64 {
	id, err := strconv.ParseInt(metadata["payment_id"], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// toMinorUnits переводит сумму в минимальные единицы валюты (халалы, центы)
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func toStripeCurrency(currency string) string {
	return strings.ToLower(currency)
}
