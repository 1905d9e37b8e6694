package receive_webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/webhooks"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/webhooks/models"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

type serviceMock struct {
	mock.Mock
}

func (m *serviceMock) Signature(provider string, header http.Header) (string, error) {
	args := m.Called(provider, header)
	return args.String(0), args.Error(1)
}

func (m *serviceMock) Receive(ctx context.Context, provider string, payload []byte, signature string) (*models.ReceiveResult, error) {
	args := m.Called(ctx, provider, payload, signature)
	resp, _ := args.Get(0).(*models.ReceiveResult)
	return resp, args.Error(1)
}

const payload = `{"id":"evt_1","type":"charge.succeeded"}`

func doRequest(h *Handler, provider string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+provider, strings.NewReader(payload))
	req = mux.SetURLVars(req, map[string]string{"provider": provider})
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestHandle_Accepted(t *testing.T) {
	svc := &serviceMock{}
	svc.On("Signature", "stripe", mock.Anything).Return("t=1,v1=abc", nil).Once()
	svc.On("Receive", mock.Anything, "stripe", []byte(payload), "t=1,v1=abc").
		Return(&models.ReceiveResult{EventID: "evt_1", Status: "processed"}, nil).Once()

	rec := doRequest(NewHandler(svc, logger.NewNop()), "stripe")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"eventId":"evt_1","duplicate":false,"status":"processed"}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestHandle_UnknownProvider(t *testing.T) {
	svc := &serviceMock{}
	svc.On("Signature", "paypal", mock.Anything).Return("", webhooks.ErrUnknownProvider).Once()

	rec := doRequest(NewHandler(svc, logger.NewNop()), "paypal")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_ReceiveErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid signature", webhooks.ErrInvalidSignature, http.StatusUnauthorized},
		{"invalid payload", webhooks.ErrInvalidPayload, http.StatusBadRequest},
		{"storage failure", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &serviceMock{}
			svc.On("Signature", "stripe", mock.Anything).Return("sig", nil).Once()
			svc.On("Receive", mock.Anything, "stripe", mock.Anything, "sig").Return(nil, tt.err).Once()

			rec := doRequest(NewHandler(svc, logger.NewNop()), "stripe")

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandle_PayloadTooLarge(t *testing.T) {
	svc := &serviceMock{}
	svc.On("Signature", "stripe", mock.Anything).Return("sig", nil).Once()

	body := `{"id":"evt_big","data":"` + strings.Repeat("x", maxPayloadBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"provider": "stripe"})
	rec := httptest.NewRecorder()

	NewHandler(svc, logger.NewNop()).Handle(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	svc.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_PayloadAtLimitIsAccepted(t *testing.T) {
	body := []byte(`{"id":"evt_edge","pad":"` + strings.Repeat("x", maxPayloadBytes-26) + `"}`)
	assert.Len(t, body, maxPayloadBytes)

	svc := &serviceMock{}
	svc.On("Signature", "stripe", mock.Anything).Return("sig", nil).Once()
	svc.On("Receive", mock.Anything, "stripe", body, "sig").
		Return(&models.ReceiveResult{EventID: "evt_edge", Status: "processed"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(body)))
	req = mux.SetURLVars(req, map[string]string{"provider": "stripe"})
	rec := httptest.NewRecorder()

	NewHandler(svc, logger.NewNop()).Handle(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
