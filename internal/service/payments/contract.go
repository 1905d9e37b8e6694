package payments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
}

// PaymentRepository интерфейс репозитория платежей
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Payment, error)
	GetByGatewayReference(ctx context.Context, method domain.PaymentMethod, reference string) (*domain.Payment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Payment, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
}

// WalletLedger списания и зачисления кошелька
type WalletLedger interface {
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, description string,
		referenceType domain.WalletReferenceType, referenceID *int64) (*domain.WalletTransaction, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, description string,
		referenceType domain.WalletReferenceType, referenceID *int64) (*domain.WalletTransaction, error)
}

// BookingTransitioner переходы статусов бронирования внутри транзакции
type BookingTransitioner interface {
	TransitionInTx(ctx context.Context, booking *domain.Booking, target domain.BookingStatus, actorID int64, notes *string) error
	NotifyStatusChanged(ctx context.Context, booking *domain.Booking, from domain.BookingStatus)
}

// Gateway адаптер внешнего платежного шлюза
type Gateway interface {
	CreateCharge(ctx context.Context, req *domain.ChargeRequest) (*domain.ChargeResult, error)
	GetCharge(ctx context.Context, reference string) (*domain.ChargeResult, error)
	// FindCharge ищет списание по ID платежа из метаданных; domain.ErrChargeNotFound, если шлюз его не создавал
	FindCharge(ctx context.Context, paymentID int64) (*domain.ChargeResult, error)
}

// AuditRecorder интерфейс журнала аудита
type AuditRecorder interface {
	Record(ctx context.Context, actorID int64, action, resourceType string, resourceID int64, oldValues, newValues interface{}) error
}

// Notifier интерфейс отправки уведомлений
type Notifier interface {
	Notify(ctx context.Context, userID int64, templateKey string, payload map[string]interface{}) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics интерфейс счетчиков платежей
type Metrics interface {
	PaymentObserved(method, status string)
}

// TimeProvider интерфейс для получения текущего времени
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider реальное время
type RealTimeProvider struct{}

// Now возвращает текущее время
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
