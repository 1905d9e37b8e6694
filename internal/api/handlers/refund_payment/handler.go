package refund_payment

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
)

const (
	msgInvalidID          = "некорректный ID бронирования или платежа"
	msgInvalidRequestBody = "некорректное тело запроса"
	msgMissingUserID      = "отсутствует ID пользователя"
	msgNotFound           = "платеж не найден"
	msgForbidden          = "доступ запрещен"
	msgNotRefundable      = "платеж не может быть возвращен"
	msgInvalidInput       = "некорректная причина возврата"
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

// Handle POST /api/v1/bookings/{bookingId}/payments/{paymentId}/refund
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

	var req RefundRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /payments/{id}/refund - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	payment, err := h.service.Refund(r.Context(), bookingID, paymentID, &models.RefundRequest{
		Requester: models.Requester{UserID: userID, Role: role},
		Reason:    req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrBookingNotFound), errors.Is(err, payments.ErrPaymentNotFound):
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, payments.ErrAccessDenied):
			h.logger.Warn("POST /payments/{id}/refund - Access denied: payment_id=%d, user_id=%d", paymentID, userID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, payments.ErrPaymentNotRefundable):
			h.logger.Warn("POST /payments/{id}/refund - Not refundable: payment_id=%d, %v", paymentID, err)
			handlers.RespondConflict(w, msgNotRefundable)

		case errors.Is(err, payments.ErrInvalidInput):
			handlers.RespondBadRequest(w, msgInvalidInput)

		default:
			h.logger.Error("POST /payments/{id}/refund - Failed to refund: payment_id=%d, error=%v", paymentID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /payments/{id}/refund - Payment refunded: payment_id=%d, booking_id=%d, by=%d",
		paymentID, bookingID, userID)
	handlers.RespondJSON(w, http.StatusOK, payment)
}
