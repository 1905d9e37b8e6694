package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	webhookRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/webhookevent"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/webhooks/models"
)

const (
	outcomeProcessed        = "processed"
	outcomeDuplicate        = "duplicate"
	outcomeFailed           = "failed"
	outcomeExhausted        = "exhausted"
	outcomeInvalidSignature = "invalid_signature"
	outcomeInvalidPayload   = "invalid_payload"

	defaultQueuedGrace = 5 * time.Minute
)

// Config параметры обработки вебхуков
type Config struct {
	MaxAttempts int
	// QueuedGrace через сколько queued событие считается брошенным и берется повторно
	QueuedGrace time.Duration
}

// Service прием и обработка вебхуков платежных шлюзов
type Service struct {
	providers    map[string]Provider
	eventRepo    EventRepository
	reconciler   Reconciler
	dedup        DedupCache
	txManager    TransactionManager
	metrics      Metrics
	timeProvider TimeProvider
	config       Config
	logger       Logger
}

// NewService создает новый экземпляр сервиса вебхуков
func NewService(
	providers map[string]Provider,
	eventRepo EventRepository,
	reconciler Reconciler,
	dedup DedupCache,
	txManager TransactionManager,
	metrics Metrics,
	config Config,
	logger Logger,
) *Service {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = domain.DefaultWebhookMaxAttempts
	}
	if config.QueuedGrace <= 0 {
		config.QueuedGrace = defaultQueuedGrace
	}

	return &Service{
		providers:    providers,
		eventRepo:    eventRepo,
		reconciler:   reconciler,
		dedup:        dedup,
		txManager:    txManager,
		metrics:      metrics,
		timeProvider: RealTimeProvider{},
		config:       config,
		logger:       logger,
	}
}

// SetTimeProvider подменяет источник времени
func (s *Service) SetTimeProvider(tp TimeProvider) {
	s.timeProvider = tp
}

// Signature достает подпись провайдера из заголовков запроса
func (s *Service) Signature(provider string, header http.Header) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	return p.SignatureFromHeader(header), nil
}

// Receive принимает доставку вебхука.
// Событие сначала durably ставится в очередь (queued), затем обрабатывается.
// Ошибка обработки не возвращается вызывающему: событие остается failed и будет повторено.
func (s *Service) Receive(ctx context.Context, provider string, payload []byte, signature string) (*models.ReceiveResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		s.logger.Warn("Receive: unknown provider %q", provider)
		return nil, ErrUnknownProvider
	}

	if err := p.VerifySignature(payload, signature); err != nil {
		s.logger.Warn("Receive: %s signature rejected: %v", provider, err)
		s.metrics.WebhookEvent(provider, outcomeInvalidSignature)
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event, err := p.ParseEvent(payload)
	if err != nil {
		s.logger.Warn("Receive: %s payload rejected: %v", provider, err)
		s.metrics.WebhookEvent(provider, outcomeInvalidPayload)
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	key := domain.WebhookIdempotencyKey(provider, event.EventID)

	// redis только подсказка, источник истины - уникальный ключ в БД
	processed, err := s.dedup.IsProcessed(ctx, key)
	if err != nil {
		s.logger.Warn("Receive: dedup lookup for %s failed: %v", key, err)
	} else if processed {
		s.logger.Info("Receive: event %s already processed", key)
		s.metrics.WebhookEvent(provider, outcomeDuplicate)
		return &models.ReceiveResult{
			EventID:   event.EventID,
			Duplicate: true,
			Status:    string(domain.WebhookProcessed),
		}, nil
	}

	stored := &domain.WebhookEvent{
		Provider:        provider,
		ProviderEventID: event.EventID,
		IdempotencyKey:  key,
		EventType:       event.EventType,
		Payload:         payload,
		Status:          domain.WebhookQueued,
	}

	inserted, err := s.eventRepo.InsertIfAbsent(ctx, stored)
	if err != nil {
		s.logger.Error("Receive: failed to store event %s: %v", key, err)
		return nil, fmt.Errorf("%w: Receive - store event: %v", ErrInternal, err)
	}

	if !inserted {
		status := domain.WebhookQueued
		existing, err := s.eventRepo.GetByIdempotencyKey(ctx, key)
		if err != nil {
			s.logger.Warn("Receive: duplicate %s could not be loaded: %v", key, err)
		} else {
			status = existing.Status
		}

		s.logger.Info("Receive: duplicate delivery of %s (status=%s)", key, status)
		s.metrics.WebhookEvent(provider, outcomeDuplicate)
		return &models.ReceiveResult{
			EventID:   event.EventID,
			Duplicate: true,
			Status:    string(status),
		}, nil
	}

	s.logger.Info("Receive: queued %s event %s type=%s as id=%d", provider, event.EventID, event.EventType, stored.ID)

	status := s.process(ctx, stored.ID, provider)

	return &models.ReceiveResult{
		EventID:   event.EventID,
		Duplicate: false,
		Status:    string(status),
	}, nil
}

// RetryFailed повторно обрабатывает failed события и зависшие queued.
// Возвращает число успешно обработанных.
func (s *Service) RetryFailed(ctx context.Context, limit int) (int, error) {
	queuedBefore := s.timeProvider.Now().Add(-s.config.QueuedGrace)

	ids, err := s.eventRepo.ListRetryable(ctx, s.config.MaxAttempts, queuedBefore, limit)
	if err != nil {
		s.logger.Error("RetryFailed: repository error: %v", err)
		return 0, fmt.Errorf("%w: RetryFailed - list retryable: %v", ErrInternal, err)
	}

	processed := 0
	for _, id := range ids {
		if s.process(ctx, id, "") == domain.WebhookProcessed {
			processed++
		}
	}

	if len(ids) > 0 {
		s.logger.Info("RetryFailed: processed %d of %d events", processed, len(ids))
	}

	return processed, nil
}

// process обрабатывает сохраненное событие. Отметка processed пишется в одной транзакции со сверкой платежа.
func (s *Service) process(ctx context.Context, eventID int64, provider string) domain.WebhookEventStatus {
	var key string

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		locked, err := s.eventRepo.GetForProcessing(ctx, eventID)
		if err != nil {
			return err
		}

		provider = locked.Provider
		key = locked.IdempotencyKey

		p, ok := s.providers[locked.Provider]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, locked.Provider)
		}

		event, err := p.ParseEvent(locked.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}

		if err := s.reconciler.ReconcileGatewayEvent(ctx, event); err != nil {
			return err
		}

		return s.eventRepo.MarkProcessed(ctx, locked.ID, s.timeProvider.Now())
	})

	if err == nil {
		if dedupErr := s.dedup.MarkProcessed(ctx, key); dedupErr != nil {
			s.logger.Warn("process: dedup mark for %s failed: %v", key, dedupErr)
		}
		s.metrics.WebhookEvent(provider, outcomeProcessed)
		s.logger.Info("process: event id=%d (%s) processed", eventID, key)
		return domain.WebhookProcessed
	}

	if errors.Is(err, webhookRepo.ErrEventLocked) {
		// обрабатывается параллельно или уже обработано
		s.logger.Info("process: event id=%d is locked or already processed", eventID)
		return domain.WebhookQueued
	}

	attempts, markErr := s.eventRepo.MarkFailed(ctx, eventID, err.Error())
	if markErr != nil {
		s.logger.Error("process: event id=%d failed (%v), and marking it failed also failed: %v", eventID, err, markErr)
		return domain.WebhookFailed
	}

	if attempts >= s.config.MaxAttempts {
		s.metrics.WebhookEvent(provider, outcomeExhausted)
		s.logger.Error("process: event id=%d (%s) exhausted %d attempts, needs operator attention: %v",
			eventID, key, attempts, err)
		return domain.WebhookFailed
	}

	s.metrics.WebhookEvent(provider, outcomeFailed)
	s.logger.Warn("process: event id=%d attempt %d failed: %v", eventID, attempts, err)
	return domain.WebhookFailed
}
