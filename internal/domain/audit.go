package domain

import (
	"encoding/json"
	"time"
)

// Audit actions
const (
	ActionBookingCreated       = "booking.created"
	ActionBookingStatusChanged = "booking.status_changed"
	ActionBookingCancelled     = "booking.cancelled"
	ActionTechnicianAssigned   = "booking.technician_assigned"
	ActionQuotationCreated     = "quotation.created"
	ActionQuotationApproved    = "quotation.approved"
	ActionQuotationRejected    = "quotation.rejected"
	ActionQuotationExpired     = "quotation.expired"
	ActionPaymentCreated       = "payment.created"
	ActionPaymentPaid          = "payment.paid"
	ActionPaymentFailed        = "payment.failed"
	ActionPaymentAuthorized    = "payment.authorized"
	ActionPaymentRefunded      = "payment.refunded"
	ActionWalletCredited       = "wallet.credited"
	ActionWalletDebited        = "wallet.debited"
)

// Audit resource types
const (
	ResourceBooking   = "booking"
	ResourceQuotation = "quotation"
	ResourcePayment   = "payment"
	ResourceWallet    = "wallet"
)

// SystemActorID is recorded for changes made by sweeps and gateway callbacks
const SystemActorID int64 = 0

// AuditLog is an append-only who-changed-what record
type AuditLog struct {
	ID           int64
	ActorID      int64
	Action       string
	ResourceType string
	ResourceID   int64
	OldValues    json.RawMessage
	NewValues    json.RawMessage
	CreatedAt    time.Time
}

// OrderStatusLog is an append-only record of a booking status transition
type OrderStatusLog struct {
	ID         int64
	BookingID  int64
	FromStatus *BookingStatus // nil for creation
	ToStatus   BookingStatus
	ChangedBy  int64
	Notes      *string
	CreatedAt  time.Time
}
