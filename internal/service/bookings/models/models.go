package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

var (
	// ErrInvalidStatus возвращается при некорректном статусе
	ErrInvalidStatus = errors.New("invalid booking status")
)

// Request модели

// Requester пользователь, выполняющий запрос (из заголовков шлюза)
type Requester struct {
	UserID int64
	Role   domain.Role
}

// UpdateStatusRequest запрос на смену статуса бронирования
type UpdateStatusRequest struct {
	Requester
	Status string
	Notes  *string
}

// CancelBookingRequest запрос на отмену бронирования
type CancelBookingRequest struct {
	Requester
	CancellationReason string
}

// AssignTechnicianRequest запрос на назначение техника
type AssignTechnicianRequest struct {
	Requester
	TechnicianID int64
}

// GetCustomerBookingsRequest запрос на получение бронирований клиента
type GetCustomerBookingsRequest struct {
	Requester
	CustomerID int64
	Status     *string
}

// GetTechnicianBookingsRequest запрос на получение бронирований техника
type GetTechnicianBookingsRequest struct {
	Requester
	TechnicianID int64
	Status       *string
}

// Response модели

// BookingResponse ответ с данными бронирования
type BookingResponse struct {
	ID           int64  `json:"id"`
	CustomerID   int64  `json:"customerId"`
	TechnicianID *int64 `json:"technicianId,omitempty"`
	ServiceID    int64  `json:"serviceId"`

	ServiceCost    decimal.Decimal `json:"serviceCost"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	VATAmount      decimal.Decimal `json:"vatAmount"`
	SparePartsCost decimal.Decimal `json:"sparePartsCost"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`

	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`

	ScheduledDate string `json:"scheduledDate"` // "2025-10-15"
	StartTime     string `json:"startTime"`     // "10:00"

	Notes              *string `json:"notes,omitempty"`
	CancellationReason *string `json:"cancellationReason,omitempty"`

	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BookingListResponse ответ со списком бронирований
type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
}

// StatusLogResponse запись журнала смены статусов
type StatusLogResponse struct {
	ID         int64     `json:"id"`
	FromStatus *string   `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ChangedBy  int64     `json:"changedBy"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StatusHistoryResponse история статусов бронирования
type StatusHistoryResponse struct {
	BookingID int64               `json:"bookingId"`
	History   []StatusLogResponse `json:"history"`
}

// Методы конвертации

// FromDomainBooking конвертирует domain модель в DTO
func FromDomainBooking(b *domain.Booking) *BookingResponse {
	if b == nil {
		return nil
	}

	return &BookingResponse{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		TechnicianID:       b.TechnicianID,
		ServiceID:          b.ServiceID,
		ServiceCost:        b.ServiceCost,
		DiscountAmount:     b.DiscountAmount,
		VATAmount:          b.VATAmount,
		SparePartsCost:     b.SparePartsCost,
		TotalAmount:        b.TotalAmount,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		ScheduledDate:      b.ScheduledDate.Format(domain.DateFormat),
		StartTime:          b.StartTime.String(),
		Notes:              b.Notes,
		CancellationReason: b.CancellationReason,
		AssignedAt:         b.AssignedAt,
		StartedAt:          b.StartedAt,
		CompletedAt:        b.CompletedAt,
		CancelledAt:        b.CancelledAt,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

// FromDomainBookingList конвертирует список domain моделей в DTO
func FromDomainBookingList(bookings []*domain.Booking) *BookingListResponse {
	resp := &BookingListResponse{
		Bookings: make([]BookingResponse, 0, len(bookings)),
	}

	for _, booking := range bookings {
		if bookingResp := FromDomainBooking(booking); bookingResp != nil {
			resp.Bookings = append(resp.Bookings, *bookingResp)
		}
	}

	return resp
}

// FromDomainStatusHistory конвертирует журнал статусов в DTO
func FromDomainStatusHistory(bookingID int64, entries []*domain.OrderStatusLog) *StatusHistoryResponse {
	resp := &StatusHistoryResponse{
		BookingID: bookingID,
		History:   make([]StatusLogResponse, 0, len(entries)),
	}

	for _, e := range entries {
		var from *string
		if e.FromStatus != nil {
			s := string(*e.FromStatus)
			from = &s
		}
		resp.History = append(resp.History, StatusLogResponse{
			ID:         e.ID,
			FromStatus: from,
			ToStatus:   string(e.ToStatus),
			ChangedBy:  e.ChangedBy,
			Notes:      e.Notes,
			CreatedAt:  e.CreatedAt,
		})
	}

	return resp
}

// ToDomainBookingStatus конвертирует строку в domain.BookingStatus с валидацией
func ToDomainBookingStatus(status string) (domain.BookingStatus, error) {
	if !domain.IsValidBookingStatus(status) {
		return "", ErrInvalidStatus
	}
	return domain.BookingStatus(status), nil
}
