package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/psqlbuilder"
)

const uniqueViolation = "23505"

var paymentColumns = []string{
	"id",
	"booking_id",
	"user_id",
	"method",
	"total_amount",
	"wallet_portion",
	"gateway_portion",
	"currency",
	"gateway_reference",
	"gateway_response",
	"status",
	"failure_reason",
	"refund_amount",
	"refund_reason",
	"refunded_at",
	"paid_at",
	"created_at",
	"updated_at",
}

// Repository репозиторий платежей
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория платежей
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create сохраняет новый платеж
func (r *Repository) Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("payments").
		Columns(
			"booking_id",
			"user_id",
			"method",
			"total_amount",
			"wallet_portion",
			"gateway_portion",
			"currency",
			"gateway_reference",
			"gateway_response",
			"status",
			"failure_reason",
			"paid_at",
		).
		Values(
			p.BookingID,
			p.UserID,
			p.Method,
			p.TotalAmount,
			p.WalletPortion,
			p.GatewayPortion,
			p.Currency,
			p.GatewayReference,
			nullableJSON(p.GatewayResponse),
			p.Status,
			p.FailureReason,
			p.PaidAt,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&p.ID, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateGatewayReference
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time

	return p, nil
}

// GetByID получает платеж по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	return r.getOne(ctx, "GetByID", squirrel.Eq{"id": id}, false)
}

// GetByIDForUpdate получает платеж по ID с блокировкой строки (внутри транзакции)
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Payment, error) {
	return r.getOne(ctx, "GetByIDForUpdate", squirrel.Eq{"id": id}, dbmetrics.IsInTransaction(ctx))
}

// GetByGatewayReference получает платеж по идентификатору шлюза
func (r *Repository) GetByGatewayReference(ctx context.Context, method domain.PaymentMethod, reference string) (*domain.Payment, error) {
	return r.getOne(ctx, "GetByGatewayReference",
		squirrel.Eq{"method": method, "gateway_reference": reference},
		dbmetrics.IsInTransaction(ctx))
}

func (r *Repository) getOne(ctx context.Context, op string, where squirrel.Eq, forUpdate bool) (*domain.Payment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(paymentColumns...).
		From("payments").
		Where(where)

	if forUpdate {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %v", ErrBuildQuery, op, err)
	}

	p, err := scanPayment(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan payment: %v", ErrScanRow, op, err)
	}

	return p, nil
}

// ListByBooking возвращает платежи бронирования в порядке создания
func (r *Repository) ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Payment, error) {
	return r.list(ctx, "ListByBooking", psqlbuilder.Select(paymentColumns...).
		From("payments").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("id ASC"))
}

// ListStalePending возвращает pending платежи через шлюз, созданные раньше before.
// Ссылка шлюза может отсутствовать, если шлюз не ответил на создание списания.
func (r *Repository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Payment, error) {
	return r.list(ctx, "ListStalePending", psqlbuilder.Select(paymentColumns...).
		From("payments").
		Where(squirrel.Eq{"status": domain.PaymentPending}).
		Where(squirrel.NotEq{"method": domain.MethodWallet}).
		Where(squirrel.Lt{"created_at": before}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)))
}

func (r *Repository) list(ctx context.Context, op string, selectBuilder squirrel.SelectBuilder) ([]*domain.Payment, error) {
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

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s - scan row: %v", ErrScanRow, op, err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s - rows error: %v", ErrScanRow, op, err)
	}

	return payments, nil
}

// Update сохраняет изменяемые поля платежа
func (r *Repository) Update(ctx context.Context, p *domain.Payment) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("payments").
		Set("status", p.Status).
		Set("gateway_reference", p.GatewayReference).
		Set("gateway_response", nullableJSON(p.GatewayResponse)).
		Set("failure_reason", p.FailureReason).
		Set("refund_amount", p.RefundAmount).
		Set("refund_reason", p.RefundReason).
		Set("refunded_at", p.RefundedAt).
		Set("paid_at", p.PaidAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix("RETURNING updated_at").
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: Update - build update query: %v", ErrBuildQuery, err)
	}

	var updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return ErrPaymentNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateGatewayReference
		}
		return fmt.Errorf("%w: Update - execute update: %v", ErrExecQuery, err)
	}
	p.UpdatedAt = updatedAt.Time

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var gatewayResponse []byte
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.UserID,
		&p.Method,
		&p.TotalAmount,
		&p.WalletPortion,
		&p.GatewayPortion,
		&p.Currency,
		&p.GatewayReference,
		&gatewayResponse,
		&p.Status,
		&p.FailureReason,
		&p.RefundAmount,
		&p.RefundReason,
		&p.RefundedAt,
		&p.PaidAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.GatewayResponse = gatewayResponse
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time

	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
