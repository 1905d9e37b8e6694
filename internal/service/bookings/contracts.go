package bookings

import (
	"context"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/userservice"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	List(ctx context.Context, filter domain.BookingsFilter) ([]*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
}

// StatusLogRepository интерфейс журнала смены статусов
type StatusLogRepository interface {
	Create(ctx context.Context, entry *domain.OrderStatusLog) error
	ListByBooking(ctx context.Context, bookingID int64) ([]*domain.OrderStatusLog, error)
}

// QuotationRepository квотации бронирования, которые закрываются при смене статуса
type QuotationRepository interface {
	GetPendingByBooking(ctx context.Context, bookingID int64) (*domain.Quotation, error)
	UpdateStatus(ctx context.Context, q *domain.Quotation) error
}

// AuditRecorder интерфейс журнала аудита
type AuditRecorder interface {
	Record(ctx context.Context, actorID int64, action, resourceType string, resourceID int64, oldValues, newValues interface{}) error
}

// UserDirectory профили пользователей во внешнем UserService
type UserDirectory interface {
	GetUserWithGracefulDegradation(ctx context.Context, userID int64) (*userservice.User, error)
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
