package create_booking

import (
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	createBooking "github.com/m04kA/SMC-HomeServiceBooking/internal/usecase/create_booking"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/types"
)

// CreateBookingRequest HTTP request model
type CreateBookingRequest struct {
	ServiceID     int64   `json:"serviceId" validate:"required,gt=0"`
	ScheduledDate string  `json:"scheduledDate" validate:"required"` // "2025-10-15"
	StartTime     string  `json:"startTime" validate:"required"`     // "10:00"
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ToUseCaseRequest конвертирует HTTP запрос в модель use case
func (r *CreateBookingRequest) ToUseCaseRequest(customerID int64, role domain.Role) (*createBooking.Request, error) {
	date, err := time.Parse(domain.DateFormat, r.ScheduledDate)
	if err != nil {
		return nil, errInvalidDate
	}

	startTime, err := types.NewTimeStringFromString(r.StartTime)
	if err != nil {
		return nil, errInvalidTime
	}

	return &createBooking.Request{
		CustomerID: customerID,
		Role:       role,
		ServiceID:  r.ServiceID,
		Date:       date,
		StartTime:  startTime,
		Notes:      r.Notes,
	}, nil
}
