package quotations

import (
	"context"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
}

// QuotationRepository интерфейс репозитория квотаций
type QuotationRepository interface {
	Create(ctx context.Context, q *domain.Quotation) (*domain.Quotation, error)
	GetByID(ctx context.Context, id int64) (*domain.Quotation, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Quotation, error)
	GetPendingByBooking(ctx context.Context, bookingID int64) (*domain.Quotation, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Quotation, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Quotation, error)
	UpdateStatus(ctx context.Context, q *domain.Quotation) error
}

// BookingTransitioner переходы статусов бронирования внутри транзакции
type BookingTransitioner interface {
	TransitionInTx(ctx context.Context, booking *domain.Booking, target domain.BookingStatus, actorID int64, notes *string) error
	NotifyStatusChanged(ctx context.Context, booking *domain.Booking, from domain.BookingStatus)
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
