package create_booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/audit"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/testutil/fakes"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/usecase/create_booking"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/types"
)

const (
	customerID int64 = 10
	serviceID  int64 = 5
)

var now = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

type env struct {
	store   *fakes.Store
	catalog *fakes.Catalog
	uc      *create_booking.UseCase
}

func newEnv() *env {
	store := fakes.NewStore()
	clock := fakes.NewClock(now)
	store.SetClock(clock.Now)
	catalog := &fakes.Catalog{Services: map[int64]*catalogservice.Service{
		serviceID: {
			ID:       serviceID,
			Name:     "AC maintenance",
			Price:    decimal.RequireFromString("200"),
			Discount: decimal.RequireFromString("20"),
			IsActive: true,
		},
	}}

	uc := create_booking.NewUseCase(
		&fakes.BookingRepository{S: store},
		&fakes.StatusLogRepository{S: store},
		audit.NewService(&fakes.AuditRepository{S: store}),
		catalog,
		fakes.NewTxManager(store),
		decimal.RequireFromString("0.15"),
		logger.NewNop(),
	)
	uc.SetTimeProvider(clock)

	return &env{store: store, catalog: catalog, uc: uc}
}

func startAt(t *testing.T, s string) types.TimeString {
	t.Helper()
	ts, err := types.NewTimeStringFromString(s)
	require.NoError(t, err)
	return ts
}

func (e *env) request(t *testing.T) *create_booking.Request {
	return &create_booking.Request{
		CustomerID: customerID,
		Role:       domain.RoleCustomer,
		ServiceID:  serviceID,
		Date:       time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC),
		StartTime:  startAt(t, "10:00"),
	}
}

func TestExecute_PricesFromCatalog(t *testing.T) {
	e := newEnv()

	resp, err := e.uc.Execute(context.Background(), e.request(t))
	require.NoError(t, err)

	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "pending", resp.PaymentStatus)
	assert.Equal(t, "2025-10-20", resp.ScheduledDate)
	assert.Equal(t, "10:00", resp.StartTime)
	assert.True(t, resp.ServiceCost.Equal(decimal.RequireFromString("200")))
	assert.True(t, resp.DiscountAmount.Equal(decimal.RequireFromString("20")))
	assert.True(t, resp.VATAmount.Equal(decimal.RequireFromString("27")))
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("207")))

	stored, ok := e.store.Booking(resp.ID)
	require.True(t, ok)
	assert.True(t, stored.TotalIsConsistent())

	logs := e.store.StatusLogs(resp.ID)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].FromStatus)
	assert.Equal(t, domain.StatusPending, logs[0].ToStatus)
	assert.Equal(t, customerID, logs[0].ChangedBy)

	assert.Equal(t, []string{domain.ActionBookingCreated}, e.store.AuditActions(domain.ResourceBooking, resp.ID))
}

func TestExecute_DiscountNeverExceedsCost(t *testing.T) {
	e := newEnv()
	e.catalog.Services[serviceID].Discount = decimal.RequireFromString("250")

	resp, err := e.uc.Execute(context.Background(), e.request(t))
	require.NoError(t, err)

	assert.True(t, resp.DiscountAmount.Equal(decimal.RequireFromString("200")))
	assert.True(t, resp.VATAmount.IsZero())
	assert.True(t, resp.TotalAmount.IsZero())
}

func TestExecute_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(e *env, req *create_booking.Request)
		wantErr error
	}{
		{
			name:    "technician can not book",
			modify:  func(_ *env, req *create_booking.Request) { req.Role = domain.RoleTechnician },
			wantErr: create_booking.ErrAccessDenied,
		},
		{
			name:    "missing service",
			modify:  func(_ *env, req *create_booking.Request) { req.ServiceID = 0 },
			wantErr: create_booking.ErrInvalidInput,
		},
		{
			name:    "missing start time",
			modify:  func(_ *env, req *create_booking.Request) { req.StartTime = types.TimeString{} },
			wantErr: create_booking.ErrInvalidInput,
		},
		{
			name: "date in the past",
			modify: func(_ *env, req *create_booking.Request) {
				req.Date = time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)
			},
			wantErr: create_booking.ErrInvalidDate,
		},
		{
			name: "start time already passed today",
			modify: func(_ *env, req *create_booking.Request) {
				req.Date = time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
				req.StartTime = types.NewTimeString(now.Add(-time.Hour))
			},
			wantErr: create_booking.ErrTooLateToBook,
		},
		{
			name:    "unknown service",
			modify:  func(_ *env, req *create_booking.Request) { req.ServiceID = 404 },
			wantErr: create_booking.ErrServiceNotFound,
		},
		{
			name: "inactive service",
			modify: func(e *env, _ *create_booking.Request) {
				e.catalog.Services[serviceID].IsActive = false
			},
			wantErr: create_booking.ErrServiceUnavailable,
		},
		{
			name: "catalog unavailable",
			modify: func(e *env, _ *create_booking.Request) {
				e.catalog.Err = errors.New("catalog: 503")
			},
			wantErr: create_booking.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			req := e.request(t)
			tt.modify(e, req)

			_, err := e.uc.Execute(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)

			_, ok := e.store.Booking(1)
			assert.False(t, ok)
		})
	}
}

func TestExecute_LaterToday(t *testing.T) {
	e := newEnv()
	req := e.request(t)
	req.Date = time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
	req.StartTime = startAt(t, "14:30")

	resp, err := e.uc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "14:30", resp.StartTime)
}

func TestExecute_AuditFailureRollsBack(t *testing.T) {
	e := newEnv()
	e.store.FailOn("audit.Create", errors.New("connection reset"))

	_, err := e.uc.Execute(context.Background(), e.request(t))
	assert.ErrorIs(t, err, create_booking.ErrInternal)

	_, ok := e.store.Booking(1)
	assert.False(t, ok)
	assert.Empty(t, e.store.StatusLogs(1))
}
