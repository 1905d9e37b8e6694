package quotation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/psqlbuilder"
)

// uniqueViolation код ошибки PostgreSQL для нарушения уникальности
const uniqueViolation = "23505"

var quotationColumns = []string{
	"id",
	"booking_id",
	"technician_id",
	"additional_cost",
	"vat_amount",
	"line_items",
	"status",
	"expires_at",
	"decided_at",
	"decided_by",
	"created_at",
	"updated_at",
}

// Repository репозиторий квотаций
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория квотаций
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create сохраняет новую квотацию.
// Частичный уникальный индекс не допускает двух pending квотаций на одно бронирование.
func (r *Repository) Create(ctx context.Context, q *domain.Quotation) (*domain.Quotation, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	lineItems, err := json.Marshal(q.LineItems)
	if err != nil {
		return nil, fmt.Errorf("%w: Create - marshal line items: %v", ErrBuildQuery, err)
	}

	query, args, err := psqlbuilder.Insert("quotations").
		Columns("booking_id", "technician_id", "additional_cost", "vat_amount", "line_items", "status", "expires_at").
		Values(q.BookingID, q.TechnicianID, q.AdditionalCost, q.VATAmount, string(lineItems), q.Status, q.ExpiresAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&q.ID, &createdAt, &updatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrPendingQuotationExists
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	q.CreatedAt = createdAt.Time
	q.UpdatedAt = updatedAt.Time

	return q, nil
}

// GetByID получает квотацию по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Quotation, error) {
	return r.getOne(ctx, "GetByID", squirrel.Eq{"id": id}, false)
}

// GetByIDForUpdate получает квотацию по ID с блокировкой строки (внутри транзакции)
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Quotation, error) {
	return r.getOne(ctx, "GetByIDForUpdate", squirrel.Eq{"id": id}, dbmetrics.IsInTransaction(ctx))
}

// GetPendingByBooking получает pending квотацию бронирования
func (r *Repository) GetPendingByBooking(ctx context.Context, bookingID int64) (*domain.Quotation, error) {
	return r.getOne(ctx, "GetPendingByBooking",
		squirrel.Eq{"booking_id": bookingID, "status": domain.QuotationPending},
		dbmetrics.IsInTransaction(ctx))
}

func (r *Repository) getOne(ctx context.Context, op string, where squirrel.Eq, forUpdate bool) (*domain.Quotation, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(quotationColumns...).
		From("quotations").
		Where(where)

	if forUpdate {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %v", ErrBuildQuery, op, err)
	}

	q, err := scanQuotation(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrQuotationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan quotation: %v", ErrScanRow, op, err)
	}

	return q, nil
}

// ListByBooking возвращает все квотации бронирования, новые первыми
func (r *Repository) ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Quotation, error) {
	return r.list(ctx, "ListByBooking", psqlbuilder.Select(quotationColumns...).
		From("quotations").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("id DESC"))
}

// ListExpiredPending возвращает pending квотации с истекшим сроком
func (r *Repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Quotation, error) {
	return r.list(ctx, "ListExpiredPending", psqlbuilder.Select(quotationColumns...).
		From("quotations").
		Where(squirrel.Eq{"status": domain.QuotationPending}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at ASC").
		Limit(uint64(limit)))
}

func (r *Repository) list(ctx context.Context, op string, selectBuilder squirrel.SelectBuilder) ([]*domain.Quotation, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %v", ErrBuildQuery, op, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s - execute query: %v", ErrExecQuery, op, err)
	}
	defer rows.Close()

	quotations := make([]*domain.Quotation, 0)
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s - scan row: %v", ErrScanRow, op, err)
		}
		quotations = append(quotations, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s - rows error: %v", ErrScanRow, op, err)
	}

	return quotations, nil
}

// UpdateStatus переводит квотацию в итоговый статус. Обновляется только pending квотация.
func (r *Repository) UpdateStatus(ctx context.Context, q *domain.Quotation) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("quotations").
		Set("status", q.Status).
		Set("decided_at", q.DecidedAt).
		Set("decided_by", q.DecidedBy).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": q.ID, "status": domain.QuotationPending}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: UpdateStatus - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: UpdateStatus - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: UpdateStatus - get rows affected: %v", ErrExecQuery, err)
	}

	if rowsAffected == 0 {
		return ErrQuotationNotPending
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuotation(row rowScanner) (*domain.Quotation, error) {
	var q domain.Quotation
	var lineItems []byte
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&q.ID,
		&q.BookingID,
		&q.TechnicianID,
		&q.AdditionalCost,
		&q.VATAmount,
		&lineItems,
		&q.Status,
		&q.ExpiresAt,
		&q.DecidedAt,
		&q.DecidedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lineItems, &q.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %v", err)
	}

	q.CreatedAt = createdAt.Time
	q.UpdatedAt = updatedAt.Time

	return &q, nil
}
