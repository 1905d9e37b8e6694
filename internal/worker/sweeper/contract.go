package sweeper

import (
	"context"
	"time"
)

// QuotationExpirer переводит просроченные квотации в expired
type QuotationExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// WebhookRetrier повторяет обработку failed и зависших queued событий
type WebhookRetrier interface {
	RetryFailed(ctx context.Context, limit int) (int, error)
}

// PaymentReconciler сверяет pending платежи со шлюзом
type PaymentReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type Metrics interface {
	SweeperRun(job, outcome string)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
