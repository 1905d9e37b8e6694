package decide_quotation

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
)

const (
	msgInvalidQuotationID = "некорректный ID квотации"
	msgMissingUserID      = "отсутствует ID пользователя"
	msgNotFound           = "квотация не найдена"
	msgForbidden          = "решение по квотации принимает клиент бронирования"
	msgAlreadyProcessed   = "по квотации уже принято решение"
	msgExpired            = "срок действия квотации истек"
	msgInvalidTransition  = "бронирование не может перейти в нужный статус"
)

type Handler struct {
	decide DecideFunc
	action string
	logger Logger
}

// NewApproveHandler POST /api/v1/quotations/{quotationId}/approve
func NewApproveHandler(decide DecideFunc, logger Logger) *Handler {
	return &Handler{decide: decide, action: "approve", logger: logger}
}

// NewRejectHandler POST /api/v1/quotations/{quotationId}/reject
func NewRejectHandler(decide DecideFunc, logger Logger) *Handler {
	return &Handler{decide: decide, action: "reject", logger: logger}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	quotationID, err := handlers.PathInt64(r, "quotationId")
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidQuotationID)
		return
	}

	userID, role, ok := middleware.GetRequester(r.Context())
	if !ok {
		handlers.RespondUnauthorized(w, msgMissingUserID)
		return
	}

	quotation, err := h.decide(r.Context(), quotationID, &models.DecisionRequest{UserID: userID, Role: role})
	if err != nil {
		switch {
		case errors.Is(err, quotations.ErrQuotationNotFound), errors.Is(err, quotations.ErrBookingNotFound):
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, quotations.ErrAccessDenied):
			h.logger.Warn("POST /quotations/{id}/%s - Access denied: quotation_id=%d, user_id=%d",
				h.action, quotationID, userID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, quotations.ErrAlreadyProcessed):
			handlers.RespondConflict(w, msgAlreadyProcessed)

		case errors.Is(err, quotations.ErrQuotationExpired):
			handlers.RespondConflict(w, msgExpired)

		case errors.Is(err, quotations.ErrInvalidTransition):
			handlers.RespondConflict(w, msgInvalidTransition)

		default:
			h.logger.Error("POST /quotations/{id}/%s - Failed: quotation_id=%d, error=%v", h.action, quotationID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /quotations/{id}/%s - Done: quotation_id=%d, status=%s, user_id=%d",
		h.action, quotationID, quotation.Status, userID)
	handlers.RespondJSON(w, http.StatusOK, quotation)
}
