package wallet

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// WalletRepository интерфейс репозитория кошельков
type WalletRepository interface {
	EnsureExists(ctx context.Context, userID int64) error
	GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, userID int64) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, w *domain.Wallet) error
}

// TransactionRepository интерфейс журнала операций кошелька
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.WalletTransaction) (*domain.WalletTransaction, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*domain.WalletTransaction, error)
}

// AuditRecorder интерфейс журнала аудита
type AuditRecorder interface {
	Record(ctx context.Context, actorID int64, action, resourceType string, resourceID int64, oldValues, newValues interface{}) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics интерфейс счетчиков операций кошелька
type Metrics interface {
	WalletOperation(operationType, outcome string)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
