package decide_quotation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

func doRequest(h *Handler, quotationID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotations/"+quotationID+"/approve", nil)
	req = mux.SetURLVars(req, map[string]string{"quotationId": quotationID})
	req = req.WithContext(middleware.WithUser(req.Context(), 10, domain.RoleCustomer))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestHandle_Approved(t *testing.T) {
	var got *models.DecisionRequest
	h := NewApproveHandler(func(_ context.Context, id int64, req *models.DecisionRequest) (*models.QuotationResponse, error) {
		got = req
		return &models.QuotationResponse{ID: id, Status: "approved"}, nil
	}, logger.NewNop())

	rec := doRequest(h, "4")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)
	assert.Equal(t, &models.DecisionRequest{UserID: 10, Role: domain.RoleCustomer}, got)
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", quotations.ErrQuotationNotFound, http.StatusNotFound},
		{"not the customer", quotations.ErrAccessDenied, http.StatusForbidden},
		{"already decided", fmt.Errorf("%w: quotation is approved", quotations.ErrAlreadyProcessed), http.StatusConflict},
		{"expired", quotations.ErrQuotationExpired, http.StatusConflict},
		{"booking left quotation_pending", fmt.Errorf("%w: booking is cancelled", quotations.ErrInvalidTransition), http.StatusConflict},
		{"internal", errors.New("db is down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRejectHandler(func(context.Context, int64, *models.DecisionRequest) (*models.QuotationResponse, error) {
				return nil, tt.err
			}, logger.NewNop())

			rec := doRequest(h, "4")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestHandle_BadQuotationID(t *testing.T) {
	h := NewApproveHandler(func(context.Context, int64, *models.DecisionRequest) (*models.QuotationResponse, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}, logger.NewNop())

	rec := doRequest(h, "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
