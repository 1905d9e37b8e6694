package decide_quotation

import (
	"context"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
)

// DecideFunc Approve или Reject сервиса квотаций
type DecideFunc func(ctx context.Context, quotationID int64, req *models.DecisionRequest) (*models.QuotationResponse, error)

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
