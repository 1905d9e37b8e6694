package credit_wallet

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet/models"
)

const (
	msgInvalidUserID      = "некорректный ID пользователя"
	msgInvalidRequestBody = "некорректное тело запроса"
	msgMissingUserID      = "отсутствует ID пользователя"
	msgForbidden          = "пополнение доступно только администратору"
	msgInvalidAmount      = "сумма пополнения должна быть положительной"
	msgInvalidInput       = "некорректные данные пополнения"
)

type Handler struct {
	service WalletService
	logger  Logger
}

func NewHandler(service WalletService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle POST /api/v1/users/{userId}/wallet/credits
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ownerID, err := handlers.PathInt64(r, "userId")
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidUserID)
		return
	}

	actorID, role, ok := middleware.GetRequester(r.Context())
	if !ok {
		handlers.RespondUnauthorized(w, msgMissingUserID)
		return
	}

	var req CreditRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /users/{userId}/wallet/credits - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	tx, err := h.service.AdminCredit(r.Context(), &models.CreditRequest{
		ActorID:       actorID,
		ActorRole:     role,
		UserID:        ownerID,
		Amount:        req.Amount,
		Description:   req.Description,
		ReferenceType: domain.WalletReferenceType(req.ReferenceType),
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrAccessDenied):
			h.logger.Warn("POST /users/{userId}/wallet/credits - Access denied: actor=%d, role=%s", actorID, role)
			handlers.RespondForbidden(w, msgForbidden)
		case errors.Is(err, wallet.ErrInvalidAmount):
			handlers.RespondBadRequest(w, msgInvalidAmount)
		case errors.Is(err, wallet.ErrInvalidInput):
			handlers.RespondBadRequest(w, msgInvalidInput)
		default:
			h.logger.Error("POST /users/{userId}/wallet/credits - Failed: owner=%d, error=%v", ownerID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /users/{userId}/wallet/credits - Wallet credited: owner=%d, amount=%s, by=%d",
		ownerID, tx.Amount.String(), actorID)
	handlers.RespondJSON(w, http.StatusCreated, tx)
}
