package get_payment

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
)

type PaymentService interface {
	GetPayment(ctx context.Context, bookingID, paymentID int64, requester models.Requester) (*models.PaymentResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
