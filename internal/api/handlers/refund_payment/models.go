package refund_payment

// RefundRequest HTTP request model
type RefundRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
