package wallet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/psqlbuilder"
)

var walletColumns = []string{
	"id",
	"user_id",
	"balance",
	"total_earned",
	"total_spent",
	"created_at",
	"updated_at",
}

// Repository репозиторий кошельков
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория кошельков
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// EnsureExists создает пустой кошелек пользователя, если его еще нет
func (r *Repository) EnsureExists(ctx context.Context, userID int64) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("wallets").
		Columns("user_id").
		Values(userID).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: EnsureExists - build insert query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: EnsureExists - execute insert: %v", ErrExecQuery, err)
	}

	return nil
}

// GetByUserID получает кошелек пользователя
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return r.getByUserID(ctx, "GetByUserID", userID, false)
}

// GetByUserIDForUpdate получает кошелек пользователя с блокировкой строки (внутри транзакции)
func (r *Repository) GetByUserIDForUpdate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return r.getByUserID(ctx, "GetByUserIDForUpdate", userID, dbmetrics.IsInTransaction(ctx))
}

func (r *Repository) getByUserID(ctx context.Context, op string, userID int64, forUpdate bool) (*domain.Wallet, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(walletColumns...).
		From("wallets").
		Where(squirrel.Eq{"user_id": userID})

	if forUpdate {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %v", ErrBuildQuery, op, err)
	}

	var w domain.Wallet
	var createdAt, updatedAt sql.NullTime

	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&w.ID,
		&w.UserID,
		&w.Balance,
		&w.TotalEarned,
		&w.TotalSpent,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan wallet: %v", ErrScanRow, op, err)
	}

	w.CreatedAt = createdAt.Time
	w.UpdatedAt = updatedAt.Time

	return &w, nil
}

// UpdateBalance сохраняет баланс и накопительные итоги кошелька
func (r *Repository) UpdateBalance(ctx context.Context, w *domain.Wallet) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("wallets").
		Set("balance", w.Balance).
		Set("total_earned", w.TotalEarned).
		Set("total_spent", w.TotalSpent).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": w.ID}).
		Suffix("RETURNING updated_at").
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: UpdateBalance - build update query: %v", ErrBuildQuery, err)
	}

	var updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return ErrWalletNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: UpdateBalance - execute update: %v", ErrExecQuery, err)
	}
	w.UpdatedAt = updatedAt.Time

	return nil
}
