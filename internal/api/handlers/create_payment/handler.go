package create_payment

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments"
)

const (
	msgInvalidBookingID    = "некорректный ID бронирования"
	msgInvalidRequestBody  = "некорректное тело запроса"
	msgMissingUserID       = "отсутствует ID пользователя"
	msgNotFound            = "бронирование не найдено"
	msgForbidden           = "оплатить бронирование может только его клиент"
	msgInvalidAmount       = "некорректная сумма платежа"
	msgInvalidInput        = "некорректные данные платежа"
	msgAmountMismatch      = "сумма платежа не совпадает с остатком к оплате"
	msgInsufficientBalance = "недостаточно средств на кошельке"
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

// Handle POST /api/v1/bookings/{bookingId}/payments
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	bookingID, err := handlers.PathInt64(r, "bookingId")
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidBookingID)
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		handlers.RespondUnauthorized(w, msgMissingUserID)
		return
	}

	var req CreatePaymentRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /bookings/{id}/payments - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), bookingID, req.ToServiceRequest(userID))
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrGatewayTimeout) && payment != nil:
			// шлюз не ответил: платеж остается pending до вебхука или сверки
			h.logger.Warn("POST /bookings/{id}/payments - Gateway timeout: payment_id=%d stays pending", payment.ID)
			handlers.RespondJSON(w, http.StatusAccepted, payment)

		case errors.Is(err, payments.ErrBookingNotFound):
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, payments.ErrAccessDenied):
			h.logger.Warn("POST /bookings/{id}/payments - Access denied: booking_id=%d, user_id=%d", bookingID, userID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, payments.ErrInvalidAmount):
			handlers.RespondBadRequest(w, msgInvalidAmount)

		case errors.Is(err, payments.ErrInvalidInput):
			h.logger.Warn("POST /bookings/{id}/payments - Invalid input: %v", err)
			handlers.RespondBadRequest(w, msgInvalidInput)

		case errors.Is(err, payments.ErrAmountMismatch):
			h.logger.Warn("POST /bookings/{id}/payments - Amount mismatch: booking_id=%d, %v", bookingID, err)
			handlers.RespondUnprocessable(w, msgAmountMismatch)

		case errors.Is(err, payments.ErrInsufficientBalance):
			h.logger.Warn("POST /bookings/{id}/payments - Insufficient balance: user_id=%d", userID)
			handlers.RespondUnprocessable(w, msgInsufficientBalance)

		default:
			h.logger.Error("POST /bookings/{id}/payments - Failed to create payment: booking_id=%d, error=%v",
				bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /bookings/{id}/payments - Payment created: payment_id=%d, booking_id=%d, status=%s",
		payment.ID, bookingID, payment.Status)
	handlers.RespondJSON(w, http.StatusCreated, payment)
}
