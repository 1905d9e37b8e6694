package omisegateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// ProviderName имя провайдера в пути вебхука
const ProviderName = "omise"

const (
	chargeSuccessful = "successful"
	chargeFailed     = "failed"
	chargeExpired    = "expired"

	eventChargeComplete = "charge.complete"
)

// Config параметры подключения к Omise
type Config struct {
	PublicKey     string
	SecretKey     string
	WebhookSecret string
}

// Gateway адаптер gateway-B поверх Omise Charges
type Gateway struct {
	client   *omise.Client
	verifier *SignatureVerifier
	log      Logger
}

// New создает адаптер Omise
func New(cfg Config, log Logger) (*Gateway, error) {
	c, err := omise.NewClient(cfg.PublicKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %v", ErrRequest, err)
	}

	return &Gateway{
		client:   c,
		verifier: NewSignatureVerifier(cfg.WebhookSecret),
		log:      log,
	}, nil
}

// CreateCharge создает платеж по токену карты (tokn_) или источнику (src_)
func (g *Gateway) CreateCharge(ctx context.Context, req *domain.ChargeRequest) (*domain.ChargeResult, error) {
	metadata := make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	op := &operations.CreateCharge{
		Amount:      toMinorUnits(req.Amount),
		Currency:    strings.ToLower(req.Currency),
		Metadata:    metadata,
		Description: req.IdempotencyKey,
	}
	if strings.HasPrefix(req.SourceToken, "src_") {
		op.Source = req.SourceToken
	} else {
		op.Card = req.SourceToken
	}

	ch := &omise.Charge{}
	if err := g.do(ctx, func() error { return g.client.Do(ch, op) }); err != nil {
		return nil, fmt.Errorf("%w: create charge: %v", ErrRequest, err)
	}

	result := toChargeResult(ch)
	if result.Status == domain.ChargeFailed {
		g.log.Warn("CreateCharge: charge %s for %s declined: %s", ch.ID, req.IdempotencyKey, result.FailureReason)
		return nil, fmt.Errorf("%w: %s", domain.ErrChargeDeclined, result.FailureReason)
	}

	return result, nil
}

// GetCharge возвращает текущее состояние платежа
func (g *Gateway) GetCharge(ctx context.Context, reference string) (*domain.ChargeResult, error) {
	ch := &omise.Charge{}
	op := &operations.RetrieveCharge{ChargeID: reference}
	if err := g.do(ctx, func() error { return g.client.Do(ch, op) }); err != nil {
		return nil, fmt.Errorf("%w: retrieve charge %s: %v", ErrRequest, reference, err)
	}
	return toChargeResult(ch), nil
}

// FindCharge ищет платеж по описанию payment-<id> и сверяет payment_id в метаданных.
// Пустой результат поиска означает, что платеж в Omise не создавался.
func (g *Gateway) FindCharge(ctx context.Context, paymentID int64) (*domain.ChargeResult, error) {
	found := &omise.ChargeSearchResult{}
	op := &operations.Search{
		Scope: omise.ChargeScope,
		Query: fmt.Sprintf("payment-%d", paymentID),
	}
	if err := g.do(ctx, func() error { return g.client.Do(found, op) }); err != nil {
		return nil, fmt.Errorf("%w: search charges for payment %d: %v", ErrRequest, paymentID, err)
	}

	ch := matchCharge(found.Data, paymentID)
	if ch == nil {
		return nil, fmt.Errorf("%w: payment %d", domain.ErrChargeNotFound, paymentID)
	}

	return toChargeResult(ch), nil
}

// SignatureFromHeader собирает "timestamp,signature[,signature]" из заголовков Omise
func (g *Gateway) SignatureFromHeader(header http.Header) string {
	return g.verifier.FromHeader(header)
}

// VerifySignature проверяет HMAC подпись вебхука
func (g *Gateway) VerifySignature(payload []byte, signature string) error {
	return g.verifier.Verify(payload, signature)
}

// ParseEvent разбирает событие Omise. Учитывается только charge.complete.
func (g *Gateway) ParseEvent(payload []byte) (*domain.GatewayEvent, error) {
	return parseEvent(payload)
}

// do выполняет вызов SDK, не дожидаясь ответа дольше ctx.
// SDK не принимает контекст, поэтому вызов продолжается в фоне после отмены.
func (g *Gateway) do(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- call()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type incomingEvent struct {
	ID   string          `json:"id"`
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

func parseEvent(payload []byte) (*domain.GatewayEvent, error) {
	var in incomingEvent
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	if in.ID == "" {
		return nil, fmt.Errorf("%w: event id is missing", ErrPayload)
	}

	event := &domain.GatewayEvent{
		Provider:  ProviderName,
		Method:    domain.MethodGatewayB,
		EventID:   in.ID,
		EventType: in.Key,
		Kind:      domain.GatewayEventIgnored,
		Raw:       payload,
	}

	if in.Key != eventChargeComplete {
		return event, nil
	}

	var ch omise.Charge
	if err := json.Unmarshal(in.Data, &ch); err != nil {
		return nil, fmt.Errorf("%w: charge: %v", ErrPayload, err)
	}

	result := toChargeResult(&ch)
	event.GatewayReference = ch.ID
	event.PaymentID = paymentIDFromMetadata(ch.Metadata)
	event.FailureReason = result.FailureReason

	switch result.Status {
	case domain.ChargeCaptured:
		event.Kind = domain.GatewayEventCaptured
	case domain.ChargeFailed:
		event.Kind = domain.GatewayEventFailed
	default:
		event.Kind = domain.GatewayEventPending
	}

	return event, nil
}

// matchCharge выбирает платеж с нужным payment_id: полнотекстовый поиск находит и payment-12 по запросу payment-1
func matchCharge(charges []*omise.Charge, paymentID int64) *omise.Charge {
	for _, ch := range charges {
		if ch != nil && paymentIDFromMetadata(ch.Metadata) == paymentID {
			return ch
		}
	}
	return nil
}

func toChargeResult(ch *omise.Charge) *domain.ChargeResult {
	result := &domain.ChargeResult{
		Reference: ch.ID,
		Status:    chargeStatus(string(ch.Status)),
	}

	switch {
	case ch.FailureMessage != nil:
		result.FailureReason = *ch.FailureMessage
	case ch.FailureCode != nil:
		result.FailureReason = *ch.FailureCode
	}

	if raw, err := json.Marshal(ch); err == nil {
		result.Raw = raw
	}

	return result
}

func chargeStatus(status string) domain.ChargeStatus {
	switch status {
	case chargeSuccessful:
		return domain.ChargeCaptured
	case chargeFailed, chargeExpired:
		return domain.ChargeFailed
	default:
		return domain.ChargePending
	}
}

func paymentIDFromMetadata(metadata map[string]interface{}) int64 {
	switch v := metadata["payment_id"].(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return id
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
