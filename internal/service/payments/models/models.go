package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// Requester пользователь, выполняющий запрос
type Requester struct {
	UserID int64
	Role   domain.Role
}

// CreatePaymentRequest запрос на оплату бронирования
type CreatePaymentRequest struct {
	ActorID       int64
	WalletAmount  decimal.Decimal
	GatewayAmount decimal.Decimal
	Method        domain.PaymentMethod
	SourceToken   string
}

// RefundRequest запрос на возврат платежа
type RefundRequest struct {
	Requester
	Reason string
}

// PaymentResponse ответ с данными платежа
type PaymentResponse struct {
	ID               int64            `json:"id"`
	BookingID        int64            `json:"bookingId"`
	UserID           int64            `json:"userId"`
	Method           string           `json:"method"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	WalletPortion    decimal.Decimal  `json:"walletPortion"`
	GatewayPortion   decimal.Decimal  `json:"gatewayPortion"`
	Currency         string           `json:"currency"`
	GatewayReference *string          `json:"gatewayReference,omitempty"`
	Status           string           `json:"status"`
	FailureReason    *string          `json:"failureReason,omitempty"`
	RefundAmount     *decimal.Decimal `json:"refundAmount,omitempty"`
	RefundReason     *string          `json:"refundReason,omitempty"`
	RefundedAt       *time.Time       `json:"refundedAt,omitempty"`
	PaidAt           *time.Time       `json:"paidAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// PaymentListResponse платежи бронирования с остатком к оплате
type PaymentListResponse struct {
	BookingID         int64             `json:"bookingId"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	OutstandingAmount decimal.Decimal   `json:"outstandingAmount"`
	PaymentStatus     string            `json:"paymentStatus"`
	Payments          []PaymentResponse `json:"payments"`
}

// FromDomainPayment конвертирует domain модель в DTO
func FromDomainPayment(p *domain.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}

	resp := &PaymentResponse{
		ID:               p.ID,
		BookingID:        p.BookingID,
		UserID:           p.UserID,
		Method:           string(p.Method),
		TotalAmount:      p.TotalAmount,
		WalletPortion:    p.WalletPortion,
		GatewayPortion:   p.GatewayPortion,
		Currency:         p.Currency,
		GatewayReference: p.GatewayReference,
		Status:           string(p.Status),
		FailureReason:    p.FailureReason,
		RefundReason:     p.RefundReason,
		RefundedAt:       p.RefundedAt,
		PaidAt:           p.PaidAt,
		CreatedAt:        p.CreatedAt,
	}

	if p.RefundAmount.Valid {
		amount := p.RefundAmount.Decimal
		resp.RefundAmount = &amount
	}

	return resp
}

// FromDomainPaymentList конвертирует платежи бронирования в DTO
func FromDomainPaymentList(b *domain.Booking, payments []*domain.Payment) *PaymentListResponse {
	resp := &PaymentListResponse{
		BookingID:         b.ID,
		TotalAmount:       b.TotalAmount,
		OutstandingAmount: domain.OutstandingAmount(b.TotalAmount, payments),
		PaymentStatus:     string(b.PaymentStatus),
		Payments:          make([]PaymentResponse, 0, len(payments)),
	}

	for _, p := range payments {
		resp.Payments = append(resp.Payments, *FromDomainPayment(p))
	}

	return resp
}
