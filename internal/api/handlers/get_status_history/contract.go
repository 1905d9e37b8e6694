package get_status_history

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings/models"
)

type BookingService interface {
	GetStatusHistory(ctx context.Context, bookingID int64, requester models.Requester) (*models.StatusHistoryResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
