package get_technician_bookings

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings/models"
)

const (
	msgInvalidTechnicianID = "некорректный ID техника"
	msgMissingUserID       = "отсутствует ID пользователя"
	msgInvalidStatus       = "некорректный статус бронирования"
	msgForbidden           = "доступ запрещен"
)

type Handler struct {
	service BookingService
	logger  Logger
}

func NewHandler(service BookingService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle GET /api/v1/technicians/{technicianId}/bookings
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	technicianID, err := handlers.PathInt64(r, "technicianId")
	if err != nil {
		h.logger.Warn("GET /technicians/{id}/bookings - Invalid technician ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidTechnicianID)
		return
	}

	requesterID, role, ok := middleware.GetRequester(r.Context())
	if !ok {
		handlers.RespondUnauthorized(w, msgMissingUserID)
		return
	}

	var statusPtr *string
	if status := r.URL.Query().Get("status"); status != "" {
		statusPtr = &status
	}

	result, err := h.service.GetTechnicianBookings(r.Context(), &models.GetTechnicianBookingsRequest{
		Requester:    models.Requester{UserID: requesterID, Role: role},
		TechnicianID: technicianID,
		Status:       statusPtr,
	})
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrAccessDenied):
			h.logger.Warn("GET /technicians/{id}/bookings - Access denied: technician_id=%d, requester=%d",
				technicianID, requesterID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, bookings.ErrInvalidInput):
			handlers.RespondBadRequest(w, msgInvalidStatus)

		default:
			h.logger.Error("GET /technicians/{id}/bookings - Failed to get bookings: technician_id=%d, error=%v",
				technicianID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("GET /technicians/{id}/bookings - Bookings retrieved successfully: technician_id=%d, count=%d",
		technicianID, len(result.Bookings))
	handlers.RespondJSON(w, http.StatusOK, result.Bookings)
}
