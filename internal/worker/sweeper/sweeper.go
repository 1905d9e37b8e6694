package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	JobExpireQuotations  = "expire_quotations"
	JobRetryWebhooks     = "retry_webhooks"
	JobReconcilePayments = "reconcile_payments"

	outcomeOK    = "ok"
	outcomeError = "error"
)

// Config расписания (cron или @every) и размеры пачек
type Config struct {
	QuotationExpirySchedule  string
	WebhookRetrySchedule     string
	PaymentReconcileSchedule string
	WebhookRetryBatch        int
	PaymentReconcileBatch    int
	PaymentReconcileAfter    time.Duration
	JobTimeout               time.Duration
}

// Sweeper периодические задачи сервиса.
// Одна и та же задача не запускается параллельно сама с собой.
type Sweeper struct {
	cron       *cron.Cron
	quotations QuotationExpirer
	webhooks   WebhookRetrier
	payments   PaymentReconciler
	metrics    Metrics
	config     Config
	logger     Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New создает планировщик и регистрирует задачи
func New(
	quotations QuotationExpirer,
	webhooks WebhookRetrier,
	payments PaymentReconciler,
	metrics Metrics,
	config Config,
	logger Logger,
) (*Sweeper, error) {
	if config.JobTimeout <= 0 {
		config.JobTimeout = time.Minute
	}

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Sweeper{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		quotations: quotations,
		webhooks:   webhooks,
		payments:   payments,
		metrics:    metrics,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{JobExpireQuotations, config.QuotationExpirySchedule, s.ExpireQuotations},
		{JobRetryWebhooks, config.WebhookRetrySchedule, s.RetryWebhooks},
		{JobReconcilePayments, config.PaymentReconcileSchedule, s.ReconcilePayments},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.schedule, func() { s.runJob(job.name, job.run) }); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidSchedule, job.name, job.schedule, err)
		}
	}

	return s, nil
}

// Start запускает планировщик в фоне
func (s *Sweeper) Start() {
	s.logger.Info("Sweeper: starting %d jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop останавливает планировщик и ждет завершения текущих задач
func (s *Sweeper) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info("Sweeper: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) runJob(name string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.JobTimeout)
	defer cancel()

	if err := run(ctx); err != nil {
		s.metrics.SweeperRun(name, outcomeError)
		s.logger.Error("Sweeper: job %s failed: %v", name, err)
		return
	}
	s.metrics.SweeperRun(name, outcomeOK)
}

// ExpireQuotations закрывает просроченные квотации
func (s *Sweeper) ExpireQuotations(ctx context.Context) error {
	n, err := s.quotations.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("Sweeper: expired %d quotations", n)
	}
	return nil
}

// RetryWebhooks повторяет обработку вебхуков
func (s *Sweeper) RetryWebhooks(ctx context.Context) error {
	n, err := s.webhooks.RetryFailed(ctx, s.config.WebhookRetryBatch)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("Sweeper: reprocessed %d webhook events", n)
	}
	return nil
}

// ReconcilePayments сверяет зависшие pending платежи
func (s *Sweeper) ReconcilePayments(ctx context.Context) error {
	n, err := s.payments.ReconcilePending(ctx, s.config.PaymentReconcileAfter, s.config.PaymentReconcileBatch)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("Sweeper: reconciled %d pending payments", n)
	}
	return nil
}

// cronLogger адаптер Logger к cron.Logger
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron пишет в Info каждый тик, это шум
	if msg == "skip" {
		l.logger.Warn("Sweeper: previous run still in progress, skipping %v", keysAndValues)
	}
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("Sweeper: %s: %v %v", msg, err, keysAndValues)
}
