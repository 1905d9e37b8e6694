package get_payment

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
)

const (
	msgInvalidID     = "некорректный ID бронирования или платежа"
	msgMissingUserID = "отсутствует ID пользователя"
	msgNotFound      = "платеж не найден"
	msgForbidden     = "доступ запрещен"
)

type Handler struct {
	service PaymentService
	logger  Logger
}

func NewHandler(service PaymentService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle GET /api/v1/bookings/{bookingId}/payments/{paymentId}
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	bookingID, err := handlers.PathInt64(r, "bookingId")
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidID)
		return
	}
	paymentID, err := handlers.PathInt64(r, "paymentId")
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidID)
		return
	}

	userID, role, ok := middleware.GetRequester(r.Context())
	if !ok {
		handlers.RespondUnauthorized(w, msgMissingUserID)
		return
	}

	payment, err := h.service.GetPayment(r.Context(), bookingID, paymentID, models.Requester{UserID: userID, Role: role})
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrBookingNotFound), errors.Is(err, payments.ErrPaymentNotFound):
			handlers.RespondNotFound(w, msgNotFound)
		case errors.Is(err, payments.ErrAccessDenied):
			handlers.RespondForbidden(w, msgForbidden)
		default:
			h.logger.Error("GET /payments/{id} - Failed: payment_id=%d, error=%v", paymentID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	handlers.RespondJSON(w, http.StatusOK, payment)
}
