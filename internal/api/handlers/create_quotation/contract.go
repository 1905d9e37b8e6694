package create_quotation

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
)

type QuotationService interface {
	Create(ctx context.Context, bookingID int64, req *models.CreateQuotationRequest) (*models.QuotationResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
