package fakes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/catalogservice"
)

// Clock фиксированное время с ручным сдвигом
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock создает часы, остановленные на now
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы вперед
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Notification отправленное уведомление
type Notification struct {
	UserID   int64
	Template string
	Payload  map[string]interface{}
}

// Notifier запоминает уведомления
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (n *Notifier) Notify(_ context.Context, userID int64, templateKey string, payload map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, Notification{UserID: userID, Template: templateKey, Payload: payload})
	return nil
}

// Sent возвращает отправленные уведомления
func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// Templates возвращает шаблоны уведомлений пользователя в порядке отправки
func (n *Notifier) Templates(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []string
	for _, s := range n.sent {
		if s.UserID == userID {
			out = append(out, s.Template)
		}
	}
	return out
}

// Metrics запоминает наблюдения счетчиков в виде "name:label:label"
type Metrics struct {
	mu     sync.Mutex
	events []string
}

func (m *Metrics) record(parts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := parts[0]
	for _, p := range parts[1:] {
		key += ":" + p
	}
	m.events = append(m.events, key)
}

func (m *Metrics) PaymentObserved(method, status string) { m.record("payment", method, status) }

func (m *Metrics) WebhookEvent(provider, outcome string) { m.record("webhook", provider, outcome) }

func (m *Metrics) WalletOperation(operationType, outcome string) {
	m.record("wallet", operationType, outcome)
}

// Events возвращает все наблюдения
func (m *Metrics) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// Dedup in-memory кэш обработанных вебхуков
type Dedup struct {
	mu   sync.Mutex
	keys map[string]bool
	Err  error
}

func (d *Dedup) IsProcessed(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Err != nil {
		return false, d.Err
	}
	return d.keys[key], nil
}

func (d *Dedup) MarkProcessed(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Err != nil {
		return d.Err
	}
	if d.keys == nil {
		d.keys = make(map[string]bool)
	}
	d.keys[key] = true
	return nil
}

// Gateway программируемый платежный шлюз.
// ChargeFunc, LookupFunc и FindFunc задают ответы; без них списание подтверждается сразу.
type Gateway struct {
	mu         sync.Mutex
	requests   []domain.ChargeRequest
	lookups    []string
	finds      []int64
	ChargeFunc func(req *domain.ChargeRequest) (*domain.ChargeResult, error)
	LookupFunc func(reference string) (*domain.ChargeResult, error)
	FindFunc   func(paymentID int64) (*domain.ChargeResult, error)
}

func (g *Gateway) CreateCharge(_ context.Context, req *domain.ChargeRequest) (*domain.ChargeResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, *req)
	fn := g.ChargeFunc
	n := len(g.requests)
	g.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	return &domain.ChargeResult{
		Reference: fmt.Sprintf("ch_%d", n),
		Status:    domain.ChargeCaptured,
	}, nil
}

func (g *Gateway) GetCharge(_ context.Context, reference string) (*domain.ChargeResult, error) {
	g.mu.Lock()
	g.lookups = append(g.lookups, reference)
	fn := g.LookupFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(reference)
	}
	return nil, errors.New("lookup is not configured")
}

func (g *Gateway) FindCharge(_ context.Context, paymentID int64) (*domain.ChargeResult, error) {
	g.mu.Lock()
	g.finds = append(g.finds, paymentID)
	fn := g.FindFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(paymentID)
	}
	return nil, errors.New("find is not configured")
}

// Finds возвращает ID платежей, по которым искали списание
func (g *Gateway) Finds() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.finds...)
}

// Requests возвращает отправленные запросы на списание
func (g *Gateway) Requests() []domain.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.ChargeRequest(nil), g.requests...)
}

// Lookups возвращает ссылки, по которым запрашивался статус
func (g *Gateway) Lookups() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.lookups...)
}

// SignatureHeader заголовок подписи фейкового провайдера
const SignatureHeader = "X-Test-Signature"

// Provider провайдер вебхуков: подпись принимается, если совпадает с Secret,
// события разбираются функцией Parse
type Provider struct {
	Secret string
	Parse  func(payload []byte) (*domain.GatewayEvent, error)
}

func (p *Provider) VerifySignature(_ []byte, signature string) error {
	if signature != p.Secret {
		return errors.New("signature mismatch")
	}
	return nil
}

func (p *Provider) ParseEvent(payload []byte) (*domain.GatewayEvent, error) {
	return p.Parse(payload)
}

func (p *Provider) SignatureFromHeader(header http.Header) string {
	return header.Get(SignatureHeader)
}

// Catalog in-memory каталог услуг
type Catalog struct {
	Services map[int64]*catalogservice.Service
	Err      error
}

func (c *Catalog) GetService(_ context.Context, serviceID int64) (*catalogservice.Service, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	s, ok := c.Services[serviceID]
	if !ok {
		return nil, catalogservice.ErrServiceNotFound
	}
	return s, nil
}
