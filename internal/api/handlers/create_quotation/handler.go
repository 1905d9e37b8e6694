package create_quotation

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations"
)

const (
	msgInvalidBookingID   = "некорректный ID бронирования"
	msgInvalidRequestBody = "некорректное тело запроса"
	msgMissingUserID      = "отсутствует ID пользователя"
	msgNotFound           = "бронирование не найдено"
	msgForbidden          = "квотацию может создать только назначенный техник"
	msgAlreadyPending     = "у бронирования уже есть квотация на рассмотрении"
	msgInvalidTransition  = "квотацию нельзя создать в текущем статусе бронирования"
	msgInvalidInput       = "некорректные позиции квотации"
)

type Handler struct {
	service QuotationService
	logger  Logger
}

func NewHandler(service QuotationService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle POST /api/v1/bookings/{bookingId}/quotations
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	bookingID, err := handlers.PathInt64(r, "bookingId")
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidBookingID)
		return
	}

	userID, role, ok := middleware.GetRequester(r.Context())
	if !ok {
		handlers.RespondUnauthorized(w, msgMissingUserID)
		return
	}
	if role != domain.RoleTechnician {
		h.logger.Warn("POST /bookings/{id}/quotations - Access denied: user_id=%d, role=%s", userID, role)
		handlers.RespondForbidden(w, msgForbidden)
		return
	}

	var req CreateQuotationRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /bookings/{id}/quotations - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	quotation, err := h.service.Create(r.Context(), bookingID, req.ToServiceRequest(userID))
	if err != nil {
		switch {
		case errors.Is(err, quotations.ErrBookingNotFound):
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, quotations.ErrAccessDenied):
			h.logger.Warn("POST /bookings/{id}/quotations - Technician not assigned: booking_id=%d, user_id=%d",
				bookingID, userID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, quotations.ErrQuotationAlreadyPending):
			handlers.RespondConflict(w, msgAlreadyPending)

		case errors.Is(err, quotations.ErrInvalidTransition):
			handlers.RespondConflict(w, msgInvalidTransition)

		case errors.Is(err, quotations.ErrInvalidInput):
			h.logger.Warn("POST /bookings/{id}/quotations - Invalid input: %v", err)
			handlers.RespondBadRequest(w, msgInvalidInput)

		default:
			h.logger.Error("POST /bookings/{id}/quotations - Failed to create quotation: booking_id=%d, error=%v",
				bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /bookings/{id}/quotations - Quotation created: quotation_id=%d, booking_id=%d, cost=%s",
		quotation.ID, bookingID, quotation.AdditionalCost.String())
	handlers.RespondJSON(w, http.StatusCreated, quotation)
}
