package webhookevent

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/psqlbuilder"
)

var eventColumns = []string{
	"id",
	"provider",
	"provider_event_id",
	"idempotency_key",
	"event_type",
	"payload",
	"status",
	"attempts",
	"last_error",
	"processed_at",
	"created_at",
	"updated_at",
}

// Repository хранилище входящих вебхуков
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория вебхуков
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// InsertIfAbsent сохраняет событие в статусе queued.
// Возвращает false, если событие с таким ключом идемпотентности уже есть.
func (r *Repository) InsertIfAbsent(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("webhook_events").
		Columns("provider", "provider_event_id", "idempotency_key", "event_type", "payload", "status").
		Values(
			event.Provider,
			event.ProviderEventID,
			event.IdempotencyKey,
			event.EventType,
			string(event.Payload),
			domain.WebhookQueued,
		).
		Suffix("ON CONFLICT (idempotency_key) DO NOTHING RETURNING id, created_at, updated_at").
		ToSql()

	if err != nil {
		return false, fmt.Errorf("%w: InsertIfAbsent - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&event.ID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: InsertIfAbsent - execute insert: %v", ErrExecQuery, err)
	}

	event.Status = domain.WebhookQueued
	event.CreatedAt = createdAt.Time
	event.UpdatedAt = updatedAt.Time

	return true, nil
}

// GetByIdempotencyKey получает событие по ключу идемпотентности
func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.WebhookEvent, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(eventColumns...).
		From("webhook_events").
		Where(squirrel.Eq{"idempotency_key": key}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByIdempotencyKey - build select query: %v", ErrBuildQuery, err)
	}

	event, err := scanEvent(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByIdempotencyKey - scan event: %v", ErrScanRow, err)
	}

	return event, nil
}

// GetForProcessing блокирует необработанное событие для обработки.
// Занятые другим обработчиком строки пропускаются, в этом случае возвращается ErrEventLocked.
func (r *Repository) GetForProcessing(ctx context.Context, id int64) (*domain.WebhookEvent, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(eventColumns...).
		From("webhook_events").
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.NotEq{"status": domain.WebhookProcessed}).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetForProcessing - build select query: %v", ErrBuildQuery, err)
	}

	event, err := scanEvent(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrEventLocked
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetForProcessing - scan event: %v", ErrScanRow, err)
	}

	return event, nil
}

// MarkProcessed помечает событие обработанным
func (r *Repository) MarkProcessed(ctx context.Context, id int64, processedAt time.Time) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("webhook_events").
		Set("status", domain.WebhookProcessed).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Set("last_error", nil).
		Set("processed_at", processedAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: MarkProcessed - build update query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: MarkProcessed - execute update: %v", ErrExecQuery, err)
	}

	return nil
}

// MarkFailed увеличивает счетчик попыток и сохраняет последнюю ошибку.
// Возвращает текущее число попыток.
func (r *Repository) MarkFailed(ctx context.Context, id int64, lastError string) (int, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("webhook_events").
		Set("status", domain.WebhookFailed).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Set("last_error", lastError).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.NotEq{"status": domain.WebhookProcessed}).
		Suffix("RETURNING attempts").
		ToSql()

	if err != nil {
		return 0, fmt.Errorf("%w: MarkFailed - build update query: %v", ErrBuildQuery, err)
	}

	var attempts int
	err = executor.QueryRowContext(ctx, query, args...).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: MarkFailed - execute update: %v", ErrExecQuery, err)
	}

	return attempts, nil
}

// ListRetryable возвращает ID событий для повторной обработки:
// failed с попытками меньше maxAttempts и queued старше queuedBefore
func (r *Repository) ListRetryable(ctx context.Context, maxAttempts int, queuedBefore time.Time, limit int) ([]int64, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select("id").
		From("webhook_events").
		Where(squirrel.Or{
			squirrel.And{
				squirrel.Eq{"status": domain.WebhookFailed},
				squirrel.Lt{"attempts": maxAttempts},
			},
			squirrel.And{
				squirrel.Eq{"status": domain.WebhookQueued},
				squirrel.Lt{"created_at": queuedBefore},
			},
		}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: ListRetryable - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: ListRetryable - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: ListRetryable - scan row: %v", ErrScanRow, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ListRetryable - rows error: %v", ErrScanRow, err)
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	var payload []byte
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&e.ID,
		&e.Provider,
		&e.ProviderEventID,
		&e.IdempotencyKey,
		&e.EventType,
		&payload,
		&e.Status,
		&e.Attempts,
		&e.LastError,
		&e.ProcessedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Payload = payload
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time

	return &e, nil
}
