package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationStatus represents the status of a technician quotation
type QuotationStatus string

const (
	QuotationPending  QuotationStatus = "pending"
	QuotationApproved QuotationStatus = "approved"
	QuotationRejected QuotationStatus = "rejected"
	QuotationExpired  QuotationStatus = "expired"
)

// QuotationLineItem is one spare part in a quotation
type QuotationLineItem struct {
	PartID    int64           `json:"partId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Quotation is an additional cost proposed by the assigned technician
type Quotation struct {
	ID             int64
	BookingID      int64
	TechnicianID   int64
	AdditionalCost decimal.Decimal
	VATAmount      decimal.Decimal
	LineItems      []QuotationLineItem
	Status         QuotationStatus
	ExpiresAt      time.Time
	DecidedAt      *time.Time
	DecidedBy      *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsPending returns true while the customer has not decided
func (q *Quotation) IsPending() bool {
	return q.Status == QuotationPending
}

// IsExpired returns true once now reaches ExpiresAt
func (q *Quotation) IsExpired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// PriceLineItems fills line totals and returns the sum of them
func PriceLineItems(items []QuotationLineItem) ([]QuotationLineItem, decimal.Decimal) {
	priced := make([]QuotationLineItem, len(items))
	total := decimal.Zero

	for i, item := range items {
		item.LineTotal = RoundMoney(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		priced[i] = item
		total = total.Add(item.LineTotal)
	}

	return priced, total
}
