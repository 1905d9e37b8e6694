package receive_webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/webhooks"
)

const (
	maxPayloadBytes = 1 << 20

	msgUnknownProvider  = "неизвестный провайдер"
	msgInvalidSignature = "подпись вебхука не прошла проверку"
	msgInvalidPayload   = "некорректное тело события"
	msgPayloadTooLarge  = "тело события слишком большое"
)

type Handler struct {
	service WebhookService
	logger  Logger
}

func NewHandler(service WebhookService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle POST /api/v1/webhooks/{provider}.
// 200 означает, что событие сохранено; обработка повторяется фоном.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	signature, err := h.service.Signature(provider, r.Header)
	if err != nil {
		h.logger.Warn("POST /webhooks/{provider} - Unknown provider: %q", provider)
		handlers.RespondNotFound(w, msgUnknownProvider)
		return
	}

	// подпись считается по сырому телу, поэтому без DecodeJSON
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("POST /webhooks/%s - Body exceeds %d bytes", provider, tooLarge.Limit)
			handlers.RespondError(w, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
			return
		}
		h.logger.Warn("POST /webhooks/%s - Failed to read body: %v", provider, err)
		handlers.RespondBadRequest(w, msgInvalidPayload)
		return
	}

	result, err := h.service.Receive(r.Context(), provider, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, webhooks.ErrUnknownProvider):
			handlers.RespondNotFound(w, msgUnknownProvider)

		case errors.Is(err, webhooks.ErrInvalidSignature):
			h.logger.Warn("POST /webhooks/%s - Invalid signature", provider)
			handlers.RespondUnauthorized(w, msgInvalidSignature)

		case errors.Is(err, webhooks.ErrInvalidPayload):
			handlers.RespondBadRequest(w, msgInvalidPayload)

		default:
			h.logger.Error("POST /webhooks/%s - Failed to store event: %v", provider, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /webhooks/%s - Event %s accepted: duplicate=%t, status=%s",
		provider, result.EventID, result.Duplicate, result.Status)
	handlers.RespondJSON(w, http.StatusOK, result)
}
