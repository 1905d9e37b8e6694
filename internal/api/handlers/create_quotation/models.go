package create_quotation

import (
	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
)

// LineItem HTTP модель позиции квотации
type LineItem struct {
	PartID    int64           `json:"partId" validate:"gte=0"`
	Name      string          `json:"name" validate:"required,max=500"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CreateQuotationRequest HTTP request model
type CreateQuotationRequest struct {
	LineItems   []LineItem `json:"lineItems" validate:"required,min=1,max=50,dive"`
	ExpiryHours int        `json:"expiryHours,omitempty" validate:"gte=0"`
}

// ToServiceRequest конвертирует HTTP request в модель сервиса
func (r *CreateQuotationRequest) ToServiceRequest(technicianID int64) *models.CreateQuotationRequest {
	items := make([]models.LineItemRequest, len(r.LineItems))
	for i, item := range r.LineItems {
		items[i] = models.LineItemRequest{
			PartID:    item.PartID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	return &models.CreateQuotationRequest{
		TechnicianID: technicianID,
		LineItems:    items,
		ExpiryHours:  r.ExpiryHours,
	}
}
