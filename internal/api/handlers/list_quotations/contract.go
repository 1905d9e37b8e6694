package list_quotations

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
)

type QuotationService interface {
	ListByBooking(ctx context.Context, bookingID int64, req *models.DecisionRequest) (*models.QuotationListResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
