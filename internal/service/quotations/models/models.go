package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// LineItemRequest запчасть в квотации
type LineItemRequest struct {
	PartID    int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateQuotationRequest запрос на создание квотации
type CreateQuotationRequest struct {
	TechnicianID int64
	LineItems    []LineItemRequest
	ExpiryHours  int
}

// DecisionRequest решение клиента по квотации
type DecisionRequest struct {
	UserID int64
	Role   domain.Role
}

// LineItemResponse запчасть в ответе
type LineItemResponse struct {
	PartID    int64           `json:"partId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// QuotationResponse ответ с данными квотации
type QuotationResponse struct {
	ID             int64              `json:"id"`
	BookingID      int64              `json:"bookingId"`
	TechnicianID   int64              `json:"technicianId"`
	AdditionalCost decimal.Decimal    `json:"additionalCost"`
	VATAmount      decimal.Decimal    `json:"vatAmount"`
	LineItems      []LineItemResponse `json:"lineItems"`
	Status         string             `json:"status"`
	ExpiresAt      time.Time          `json:"expiresAt"`
	DecidedAt      *time.Time         `json:"decidedAt,omitempty"`
	DecidedBy      *int64             `json:"decidedBy,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// QuotationListResponse список квотаций бронирования
type QuotationListResponse struct {
	Quotations []QuotationResponse `json:"quotations"`
}

// ToDomainLineItems конвертирует запрос в domain модели
func ToDomainLineItems(items []LineItemRequest) []domain.QuotationLineItem {
	out := make([]domain.QuotationLineItem, len(items))
	for i, item := range items {
		out[i] = domain.QuotationLineItem{
			PartID:    item.PartID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}

// FromDomainQuotation конвертирует domain модель в DTO
func FromDomainQuotation(q *domain.Quotation) *QuotationResponse {
	if q == nil {
		return nil
	}

	items := make([]LineItemResponse, len(q.LineItems))
	for i, item := range q.LineItems {
		items[i] = LineItemResponse{
			PartID:    item.PartID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
	}

	return &QuotationResponse{
		ID:             q.ID,
		BookingID:      q.BookingID,
		TechnicianID:   q.TechnicianID,
		AdditionalCost: q.AdditionalCost,
		VATAmount:      q.VATAmount,
		LineItems:      items,
		Status:         string(q.Status),
		ExpiresAt:      q.ExpiresAt,
		DecidedAt:      q.DecidedAt,
		DecidedBy:      q.DecidedBy,
		CreatedAt:      q.CreatedAt,
	}
}

// FromDomainQuotationList конвертирует список квотаций в DTO
func FromDomainQuotationList(quotations []*domain.Quotation) *QuotationListResponse {
	resp := &QuotationListResponse{Quotations: make([]QuotationResponse, 0, len(quotations))}
	for _, q := range quotations {
		resp.Quotations = append(resp.Quotations, *FromDomainQuotation(q))
	}
	return resp
}
