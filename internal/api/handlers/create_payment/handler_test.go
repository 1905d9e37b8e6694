package create_payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/api/middleware"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

type serviceMock struct {
	mock.Mock
}

func (m *serviceMock) CreatePayment(ctx context.Context, bookingID int64, req *models.CreatePaymentRequest) (*models.PaymentResponse, error) {
	args := m.Called(ctx, bookingID, req)
	resp, _ := args.Get(0).(*models.PaymentResponse)
	return resp, args.Error(1)
}

const body = `{"walletAmount":"30","gatewayAmount":"200.00","method":"gateway-A","sourceToken":"tok_visa"}`

func doRequest(h *Handler, bookingID, payload string, withUser bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+bookingID+"/payments", strings.NewReader(payload))
	req = mux.SetURLVars(req, map[string]string{"bookingId": bookingID})
	if withUser {
		req = req.WithContext(middleware.WithUser(req.Context(), 10, domain.RoleCustomer))
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestHandle_Created(t *testing.T) {
	svc := &serviceMock{}
	svc.On("CreatePayment", mock.Anything, int64(3), mock.MatchedBy(func(req *models.CreatePaymentRequest) bool {
		return req.ActorID == 10 &&
			req.WalletAmount.Equal(decimal.NewFromInt(30)) &&
			req.GatewayAmount.Equal(decimal.NewFromInt(200)) &&
			req.Method == domain.MethodGatewayA &&
			req.SourceToken == "tok_visa"
	})).Return(&models.PaymentResponse{ID: 1, BookingID: 3, Status: "paid"}, nil).Once()

	rec := doRequest(NewHandler(svc, logger.NewNop()), "3", body, true)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp models.PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "paid", resp.Status)
	svc.AssertExpectations(t)
}

func TestHandle_GatewayTimeoutIsAccepted(t *testing.T) {
	svc := &serviceMock{}
	svc.On("CreatePayment", mock.Anything, int64(3), mock.Anything).
		Return(&models.PaymentResponse{ID: 1, Status: "pending"}, payments.ErrGatewayTimeout).Once()

	rec := doRequest(NewHandler(svc, logger.NewNop()), "3", body, true)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name       string
		bookingID  string
		payload    string
		withUser   bool
		serviceErr error
		wantStatus int
	}{
		{"invalid booking id", "abc", body, true, nil, http.StatusBadRequest},
		{"missing user", "3", body, false, nil, http.StatusUnauthorized},
		{"unknown method", "3", `{"walletAmount":"1","method":"cash"}`, true, nil, http.StatusBadRequest},
		{"unknown field", "3", `{"method":"wallet","tip":"5"}`, true, nil, http.StatusBadRequest},
		{"booking not found", "3", body, true, payments.ErrBookingNotFound, http.StatusNotFound},
		{"not the owner", "3", body, true, payments.ErrAccessDenied, http.StatusForbidden},
		{"invalid amount", "3", body, true, payments.ErrInvalidAmount, http.StatusBadRequest},
		{"amount mismatch", "3", body, true, payments.ErrAmountMismatch, http.StatusUnprocessableEntity},
		{"insufficient balance", "3", body, true, payments.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"timeout without payment", "3", body, true, payments.ErrGatewayTimeout, http.StatusInternalServerError},
		{"unexpected", "3", body, true, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &serviceMock{}
			if tt.serviceErr != nil {
				svc.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.serviceErr).Once()
			}

			rec := doRequest(NewHandler(svc, logger.NewNop()), tt.bookingID, tt.payload, tt.withUser)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			if tt.serviceErr == nil {
				svc.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
