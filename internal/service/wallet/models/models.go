package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// GetWalletRequest запрос баланса и истории кошелька
type GetWalletRequest struct {
	RequesterID   int64
	RequesterRole domain.Role
	UserID        int64
	Limit         int
}

// CreditRequest ручное пополнение кошелька администратором
type CreditRequest struct {
	ActorID       int64
	ActorRole     domain.Role
	UserID        int64
	Amount        decimal.Decimal
	Description   string
	ReferenceType domain.WalletReferenceType
}

// TransactionResponse операция кошелька
type TransactionResponse struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description"`
	ReferenceType string          `json:"referenceType"`
	ReferenceID   *int64          `json:"referenceId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// WalletResponse баланс кошелька с последними операциями
type WalletResponse struct {
	UserID       int64                 `json:"userId"`
	Balance      decimal.Decimal       `json:"balance"`
	TotalEarned  decimal.Decimal       `json:"totalEarned"`
	TotalSpent   decimal.Decimal       `json:"totalSpent"`
	Transactions []TransactionResponse `json:"transactions"`
}

// FromDomainTransaction конвертирует операцию в DTO
func FromDomainTransaction(tx *domain.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID,
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		BalanceBefore: tx.BalanceBefore,
		BalanceAfter:  tx.BalanceAfter,
		Description:   tx.Description,
		ReferenceType: string(tx.ReferenceType),
		ReferenceID:   tx.ReferenceID,
		CreatedAt:     tx.CreatedAt,
	}
}

// FromDomainWallet конвертирует кошелек и историю в DTO
func FromDomainWallet(w *domain.Wallet, history []*domain.WalletTransaction) *WalletResponse {
	resp := &WalletResponse{
		UserID:       w.UserID,
		Balance:      w.Balance,
		TotalEarned:  w.TotalEarned,
		TotalSpent:   w.TotalSpent,
		Transactions: make([]TransactionResponse, 0, len(history)),
	}

	for _, tx := range history {
		resp.Transactions = append(resp.Transactions, FromDomainTransaction(tx))
	}

	return resp
}
