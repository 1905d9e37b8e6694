package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/pkg/types"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	StatusPending            BookingStatus = "pending"
	StatusConfirmed          BookingStatus = "confirmed"
	StatusTechnicianAssigned BookingStatus = "technician_assigned"
	StatusEnRoute            BookingStatus = "en_route"
	StatusInProgress         BookingStatus = "in_progress"
	StatusQuotationPending   BookingStatus = "quotation_pending"
	StatusCompleted          BookingStatus = "completed"
	StatusCancelled          BookingStatus = "cancelled"
)

// BookingPaymentStatus is the aggregated payment state of a booking
type BookingPaymentStatus string

const (
	BookingPaymentPending    BookingPaymentStatus = "pending"
	BookingPaymentAuthorized BookingPaymentStatus = "authorized"
	BookingPaymentPaid       BookingPaymentStatus = "paid"
	BookingPaymentRefunded   BookingPaymentStatus = "refunded"
)

// Booking represents a scheduled home-service job
type Booking struct {
	ID           int64
	CustomerID   int64
	TechnicianID *int64
	ServiceID    int64

	ServiceCost    decimal.Decimal
	DiscountAmount decimal.Decimal
	VATAmount      decimal.Decimal
	SparePartsCost decimal.Decimal
	TotalAmount    decimal.Decimal

	Status        BookingStatus
	PaymentStatus BookingPaymentStatus

	ScheduledDate time.Time
	StartTime     types.TimeString

	Notes              *string
	CancellationReason *string

	AssignedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeTotal returns service_cost - discount + vat + spare_parts
func ComputeTotal(serviceCost, discount, vat, spareParts decimal.Decimal) decimal.Decimal {
	return serviceCost.Sub(discount).Add(vat).Add(spareParts)
}

// RecomputeTotal refreshes TotalAmount from the cost components
func (b *Booking) RecomputeTotal() {
	b.TotalAmount = ComputeTotal(b.ServiceCost, b.DiscountAmount, b.VATAmount, b.SparePartsCost)
}

// TotalIsConsistent reports whether TotalAmount equals the sum of its components
func (b *Booking) TotalIsConsistent() bool {
	return b.TotalAmount.Equal(ComputeTotal(b.ServiceCost, b.DiscountAmount, b.VATAmount, b.SparePartsCost))
}

// IsTerminal returns true for completed and cancelled bookings
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// IsAssignedTo returns true if the booking is assigned to the given technician
func (b *Booking) IsAssignedTo(technicianID int64) bool {
	return b.TechnicianID != nil && *b.TechnicianID == technicianID
}

// CanBeViewedBy returns true for the customer, the assigned technician and admins
func (b *Booking) CanBeViewedBy(userID int64, role Role) bool {
	if role == RoleAdmin {
		return true
	}
	return b.CustomerID == userID || b.IsAssignedTo(userID)
}

// BookingsFilter filters booking lists
type BookingsFilter struct {
	CustomerID   *int64
	TechnicianID *int64
	Status       *BookingStatus
}
