package webhooks

import (
	"context"
	"net/http"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// EventRepository интерфейс репозитория входящих вебхуков
type EventRepository interface {
	InsertIfAbsent(ctx context.Context, event *domain.WebhookEvent) (bool, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.WebhookEvent, error)
	GetForProcessing(ctx context.Context, id int64) (*domain.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id int64, processedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, lastError string) (int, error)
	ListRetryable(ctx context.Context, maxAttempts int, queuedBefore time.Time, limit int) ([]int64, error)
}

// Provider адаптер шлюза для входящих событий
type Provider interface {
	VerifySignature(payload []byte, signature string) error
	ParseEvent(payload []byte) (*domain.GatewayEvent, error)
	SignatureFromHeader(header http.Header) string
}

// Reconciler применяет событие шлюза к платежу
type Reconciler interface {
	ReconcileGatewayEvent(ctx context.Context, event *domain.GatewayEvent) error
}

// DedupCache быстрая проверка уже обработанных событий
type DedupCache interface {
	IsProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics интерфейс счетчиков вебхуков
type Metrics interface {
	WebhookEvent(provider, outcome string)
}

// TimeProvider интерфейс для получения текущего времени
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider реальное время
type RealTimeProvider struct{}

// Now возвращает текущее время
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
