package get_wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/handlers"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet/models"
)

const (
	msgInvalidUserID = "некорректный ID пользователя"
	msgInvalidLimit  = "некорректный параметр limit"
	msgMissingUserID = "отсутствует ID пользователя"
	msgForbidden     = "доступ запрещен"
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

// Handle GET /api/v1/users/{userId}/wallet?limit=50
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ownerID, err := handlers.PathInt64(r, "userId")
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidUserID)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			handlers.RespondBadRequest(w, msgInvalidLimit)
			return
		}
	}

	userID, role, ok := middleware.GetRequester(r.Context())
	if !ok {
		handlers.RespondUnauthorized(w, msgMissingUserID)
		return
	}

	result, err := h.service.GetWallet(r.Context(), &models.GetWalletRequest{
		RequesterID:   userID,
		RequesterRole: role,
		UserID:        ownerID,
		Limit:         limit,
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrAccessDenied):
			h.logger.Warn("GET /users/{userId}/wallet - Access denied: owner=%d, requester=%d", ownerID, userID)
			handlers.RespondForbidden(w, msgForbidden)
		default:
			h.logger.Error("GET /users/{userId}/wallet - Failed: owner=%d, error=%v", ownerID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
