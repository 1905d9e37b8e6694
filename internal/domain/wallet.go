package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a per-user internal balance
type Wallet struct {
	ID          int64
	UserID      int64
	Balance     decimal.Decimal
	TotalEarned decimal.Decimal
	TotalSpent  decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsBalanced reports whether balance == total_earned - total_spent
func (w *Wallet) IsBalanced() bool {
	return w.Balance.Equal(w.TotalEarned.Sub(w.TotalSpent))
}

// WalletTransactionType is the direction of a ledger entry
type WalletTransactionType string

const (
	WalletCredit WalletTransactionType = "credit"
	WalletDebit  WalletTransactionType = "debit"
)

// WalletReferenceType describes what a ledger entry refers to
type WalletReferenceType string

const (
	ReferenceBooking     WalletReferenceType = "booking"
	ReferenceRefund      WalletReferenceType = "refund"
	ReferenceTopup       WalletReferenceType = "topup"
	ReferenceReferral    WalletReferenceType = "referral"
	ReferenceAdminCredit WalletReferenceType = "admin-credit"
	ReferenceReversal    WalletReferenceType = "reversal"
)

// IsValid checks the reference type against the known ones
func (t WalletReferenceType) IsValid() bool {
	switch t {
	case ReferenceBooking, ReferenceRefund, ReferenceTopup, ReferenceReferral, ReferenceAdminCredit, ReferenceReversal:
		return true
	}
	return false
}

// WalletTransaction is an append-only ledger entry
type WalletTransaction struct {
	ID            int64
	WalletID      int64
	UserID        int64
	Type          WalletTransactionType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	ReferenceType WalletReferenceType
	ReferenceID   *int64
	CreatedAt     time.Time
}

// FoldLedger replays transactions (oldest first) from a zero balance
func FoldLedger(transactions []*WalletTransaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range transactions {
		switch tx.Type {
		case WalletCredit:
			balance = balance.Add(tx.Amount)
		case WalletDebit:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}
