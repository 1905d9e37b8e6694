package create_payment

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
)

type PaymentService interface {
	CreatePayment(ctx context.Context, bookingID int64, req *models.CreatePaymentRequest) (*models.PaymentResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
