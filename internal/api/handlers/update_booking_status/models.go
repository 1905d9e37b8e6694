package update_booking_status

import (
	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings/models"
)

// UpdateStatusRequest HTTP request model
type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ToServiceRequest конвертирует HTTP request в модель сервиса
func (r *UpdateStatusRequest) ToServiceRequest(userID int64, role domain.Role) *models.UpdateStatusRequest {
	return &models.UpdateStatusRequest{
		Requester: models.Requester{UserID: userID, Role: role},
		Status:    r.Status,
		Notes:     r.Notes,
	}
}
