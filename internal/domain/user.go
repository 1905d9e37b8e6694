package domain

// Role of the caller as set by the API gateway
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// IsValid checks the role against the known ones
func (r Role) IsValid() bool {
	return r == RoleCustomer || r == RoleTechnician || r == RoleAdmin
}

// Notification template keys
const (
	TemplateBookingStatusChanged = "booking_status_changed"
	TemplateQuotationCreated     = "quotation_created"
	TemplateQuotationApproved    = "quotation_approved"
	TemplateQuotationRejected    = "quotation_rejected"
	TemplatePaymentPaid          = "payment_paid"
	TemplatePaymentFailed        = "payment_failed"
	TemplatePaymentRefunded      = "payment_refunded"
	TemplateWalletCredited       = "wallet_credited"
)
