package create_payment

import (
	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
)

// CreatePaymentRequest HTTP request model.
// Суммы передаются строками ("120.50") или числами.
type CreatePaymentRequest struct {
	WalletAmount  decimal.Decimal `json:"walletAmount"`
	GatewayAmount decimal.Decimal `json:"gatewayAmount"`
	Method        string          `json:"method" validate:"required,oneof=wallet gateway-A gateway-B"`
	SourceToken   string          `json:"sourceToken,omitempty" validate:"max=255"`
}

// ToServiceRequest конвертирует HTTP request в модель сервиса
func (r *CreatePaymentRequest) ToServiceRequest(actorID int64) *models.CreatePaymentRequest {
	return &models.CreatePaymentRequest{
		ActorID:       actorID,
		WalletAmount:  r.WalletAmount,
		GatewayAmount: r.GatewayAmount,
		Method:        domain.PaymentMethod(r.Method),
		SourceToken:   r.SourceToken,
	}
}
