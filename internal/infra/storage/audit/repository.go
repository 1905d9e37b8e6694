package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/psqlbuilder"
)

// Repository журнал аудита (только добавление)
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория аудита
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create добавляет запись аудита.
// Вызывается внутри транзакции изменения, чтобы запись фиксировалась или откатывалась вместе с ним.
func (r *Repository) Create(ctx context.Context, entry *domain.AuditLog) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("audit_logs").
		Columns("actor_id", "action", "resource_type", "resource_id", "old_values", "new_values").
		Values(
			entry.ActorID,
			entry.Action,
			entry.ResourceType,
			entry.ResourceID,
			nullableJSON(entry.OldValues),
			nullableJSON(entry.NewValues),
		).
		Suffix("RETURNING id, created_at").
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt sql.NullTime
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&entry.ID, &createdAt); err != nil {
		return fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}
	entry.CreatedAt = createdAt.Time

	return nil
}

// ListByResource возвращает записи аудита по ресурсу в порядке создания
func (r *Repository) ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]*domain.AuditLog, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(
		"id", "actor_id", "action", "resource_type", "resource_id", "old_values", "new_values", "created_at",
	).
		From("audit_logs").
		Where(squirrel.Eq{"resource_type": resourceType, "resource_id": resourceID}).
		OrderBy("id ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: ListByResource - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: ListByResource - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	entries := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var entry domain.AuditLog
		var oldValues, newValues []byte
		var createdAt sql.NullTime

		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&oldValues,
			&newValues,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("%w: ListByResource - scan row: %v", ErrScanRow, err)
		}

		entry.OldValues = oldValues
		entry.NewValues = newValues
		entry.CreatedAt = createdAt.Time
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ListByResource - rows error: %v", ErrScanRow, err)
	}

	return entries, nil
}

// nullableJSON превращает пустой JSON в NULL
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
