package refund_payment

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
)

type PaymentService interface {
	Refund(ctx context.Context, bookingID, paymentID int64, req *models.RefundRequest) (*models.PaymentResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
