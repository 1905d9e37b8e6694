package wallettransaction

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/psqlbuilder"
)

// Repository журнал операций кошелька (только добавление)
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория операций кошелька
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create добавляет операцию в журнал
func (r *Repository) Create(ctx context.Context, tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("wallet_transactions").
		Columns(
			"wallet_id",
			"user_id",
			"type",
			"amount",
			"balance_before",
			"balance_after",
			"description",
			"reference_type",
			"reference_id",
		).
		Values(
			tx.WalletID,
			tx.UserID,
			tx.Type,
			tx.Amount,
			tx.BalanceBefore,
			tx.BalanceAfter,
			tx.Description,
			tx.ReferenceType,
			tx.ReferenceID,
		).
		Suffix("RETURNING id, created_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt sql.NullTime
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&tx.ID, &createdAt); err != nil {
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}
	tx.CreatedAt = createdAt.Time

	return tx, nil
}

// ListByUserID возвращает последние операции пользователя, новые первыми
func (r *Repository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*domain.WalletTransaction, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(
		"id",
		"wallet_id",
		"user_id",
		"type",
		"amount",
		"balance_before",
		"balance_after",
		"description",
		"reference_type",
		"reference_id",
		"created_at",
	).
		From("wallet_transactions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: ListByUserID - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: ListByUserID - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	transactions := make([]*domain.WalletTransaction, 0)
	for rows.Next() {
		var tx domain.WalletTransaction
		var createdAt sql.NullTime

		if err := rows.Scan(
			&tx.ID,
			&tx.WalletID,
			&tx.UserID,
			&tx.Type,
			&tx.Amount,
			&tx.BalanceBefore,
			&tx.BalanceAfter,
			&tx.Description,
			&tx.ReferenceType,
			&tx.ReferenceID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("%w: ListByUserID - scan row: %v", ErrScanRow, err)
		}

		tx.CreatedAt = createdAt.Time
		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ListByUserID - rows error: %v", ErrScanRow, err)
	}

	return transactions, nil
}
