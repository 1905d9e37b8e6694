package credit_wallet

import "github.com/shopspring/decimal"

// CreditRequest HTTP request model
type CreditRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description" validate:"max=500"`
	ReferenceType string          `json:"referenceType" validate:"required,oneof=topup referral admin-credit"`
}
