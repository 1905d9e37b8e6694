package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a payment is funded
type PaymentMethod string

const (
	MethodWallet   PaymentMethod = "wallet"
	MethodGatewayA PaymentMethod = "gateway-A"
	MethodGatewayB PaymentMethod = "gateway-B"
)

// IsGateway returns true for external gateway methods
func (m PaymentMethod) IsGateway() bool {
	return m == MethodGatewayA || m == MethodGatewayB
}

// IsValid checks the method against the known ones
func (m PaymentMethod) IsValid() bool {
	return m == MethodWallet || m.IsGateway()
}

// PaymentStatus represents the status of a payment record
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Payment is a split payment of a booking: wallet portion plus gateway portion
type Payment struct {
	ID               int64
	BookingID        int64
	UserID           int64
	Method           PaymentMethod
	TotalAmount      decimal.Decimal
	WalletPortion    decimal.Decimal
	GatewayPortion   decimal.Decimal
	Currency         string
	GatewayReference *string
	GatewayResponse  json.RawMessage
	Status           PaymentStatus
	FailureReason    *string
	RefundAmount     decimal.NullDecimal
	RefundReason     *string
	RefundedAt       *time.Time
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsTerminal returns true once the payment can no longer be changed by the gateway
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentPaid || p.Status == PaymentFailed || p.Status == PaymentRefunded
}

// CountsTowardsTotal returns true for payments that cover part of the booking total
func (p *Payment) CountsTowardsTotal() bool {
	return p.Status == PaymentPending || p.Status == PaymentPaid
}

// OutstandingAmount returns total minus the sum of pending and paid payments
func OutstandingAmount(total decimal.Decimal, payments []*Payment) decimal.Decimal {
	covered := decimal.Zero
	for _, p := range payments {
		if p.CountsTowardsTotal() {
			covered = covered.Add(p.TotalAmount)
		}
	}
	return total.Sub(covered)
}

// PaidAmount returns the sum of paid payments
func PaidAmount(payments []*Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == PaymentPaid {
			paid = paid.Add(p.TotalAmount)
		}
	}
	return paid
}

// ChargeStatus is the outcome of a gateway charge
type ChargeStatus string

const (
	ChargeCaptured ChargeStatus = "captured"
	ChargePending  ChargeStatus = "pending"
	ChargeFailed   ChargeStatus = "failed"
)

// ErrChargeDeclined is returned by gateway adapters when the gateway definitively rejected the charge
var ErrChargeDeclined = errors.New("gateway: charge declined")

// ErrChargeNotFound is returned by gateway adapters when the gateway has no charge for a payment
var ErrChargeNotFound = errors.New("gateway: charge not found")

// ChargeRequest is a charge sent to an external gateway
type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	SourceToken    string
	Metadata       map[string]string
	IdempotencyKey string
}

// ChargeResult is the gateway view of a charge
type ChargeResult struct {
	Reference     string
	Status        ChargeStatus
	FailureReason string
	Raw           json.RawMessage
}
