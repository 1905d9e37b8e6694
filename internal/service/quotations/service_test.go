package quotations_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/audit"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings"
	bookingModels "github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings/models"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/testutil/fakes"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/ptr"
)

const (
	customerID   int64 = 10
	technicianID int64 = 20
)

type env struct {
	store    *fakes.Store
	clock    *fakes.Clock
	notifier *fakes.Notifier
	bookings *bookings.Service
	svc      *quotations.Service
}

func newEnv() *env {
	store := fakes.NewStore()
	clock := fakes.NewClock(time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	notifier := &fakes.Notifier{}
	tx := fakes.NewTxManager(store)
	auditSvc := audit.NewService(&fakes.AuditRepository{S: store})
	bookingRepo := &fakes.BookingRepository{S: store}

	bookingSvc := bookings.NewService(bookingRepo, &fakes.StatusLogRepository{S: store}, &fakes.QuotationRepository{S: store}, auditSvc, notifier, tx, logger.NewNop())
	bookingSvc.SetTimeProvider(clock)

	svc := quotations.NewService(
		bookingRepo,
		&fakes.QuotationRepository{S: store},
		bookingSvc,
		auditSvc,
		notifier,
		tx,
		quotations.Config{VATRate: decimal.RequireFromString("0.15"), DefaultExpiryHours: 24},
		logger.NewNop(),
	)
	svc.SetTimeProvider(clock)

	return &env{store: store, clock: clock, notifier: notifier, bookings: bookingSvc, svc: svc}
}

func (e *env) seedInProgress() domain.Booking {
	b := domain.Booking{
		CustomerID:     customerID,
		TechnicianID:   ptr.Ptr(technicianID),
		ServiceID:      5,
		ServiceCost:    decimal.RequireFromString("200"),
		DiscountAmount: decimal.Zero,
		VATAmount:      decimal.RequireFromString("30"),
		SparePartsCost: decimal.Zero,
		Status:         domain.StatusInProgress,
		PaymentStatus:  domain.BookingPaymentPaid,
		ScheduledDate:  time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
	}
	b.RecomputeTotal()
	return e.store.PutBooking(b)
}

func lineItems() []models.LineItemRequest {
	return []models.LineItemRequest{
		{PartID: 1, Name: "compressor relay", Quantity: 2, UnitPrice: decimal.RequireFromString("50")},
		{PartID: 2, Name: "gas refill", Quantity: 1, UnitPrice: decimal.RequireFromString("20")},
	}
}

func (e *env) createQuotation(t *testing.T, bookingID int64) *models.QuotationResponse {
	t.Helper()
	q, err := e.svc.Create(context.Background(), bookingID, &models.CreateQuotationRequest{
		TechnicianID: technicianID,
		LineItems:    lineItems(),
	})
	require.NoError(t, err)
	return q
}

func customer() *models.DecisionRequest {
	return &models.DecisionRequest{UserID: customerID, Role: domain.RoleCustomer}
}

func TestCreate_PricesItemsAndHoldsBooking(t *testing.T) {
	e := newEnv()
	b := e.seedInProgress()

	q := e.createQuotation(t, b.ID)

	assert.Equal(t, "pending", q.Status)
	assert.True(t, q.AdditionalCost.Equal(decimal.RequireFromString("120")))
	assert.True(t, q.VATAmount.Equal(decimal.RequireFromString("18")))
	require.Len(t, q.LineItems, 2)
	assert.True(t, q.LineItems[0].LineTotal.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, e.clock.Now().Add(24*time.Hour), q.ExpiresAt)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusQuotationPending, stored.Status)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("230")), "totals change only on approval")

	assert.Equal(t, []string{domain.ActionQuotationCreated}, e.store.AuditActions(domain.ResourceQuotation, q.ID))
	assert.Equal(t,
		[]string{domain.TemplateBookingStatusChanged, domain.TemplateQuotationCreated},
		e.notifier.Templates(customerID))
}

func TestCreate_Rejections(t *testing.T) {
	t.Run("second pending quotation", func(t *testing.T) {
		e := newEnv()
		b := e.seedInProgress()
		e.createQuotation(t, b.ID)

		_, err := e.svc.Create(context.Background(), b.ID, &models.CreateQuotationRequest{
			TechnicianID: technicianID,
			LineItems:    lineItems(),
		})
		assert.ErrorIs(t, err, quotations.ErrQuotationAlreadyPending)
	})

	t.Run("technician not assigned", func(t *testing.T) {
		e := newEnv()
		b := e.seedInProgress()

		_, err := e.svc.Create(context.Background(), b.ID, &models.CreateQuotationRequest{
			TechnicianID: 99,
			LineItems:    lineItems(),
		})
		assert.ErrorIs(t, err, quotations.ErrAccessDenied)
	})

	t.Run("booking not in progress", func(t *testing.T) {
		e := newEnv()
		b := e.seedInProgress()
		b.Status = domain.StatusEnRoute
		e.store.PutBooking(b)

		_, err := e.svc.Create(context.Background(), b.ID, &models.CreateQuotationRequest{
			TechnicianID: technicianID,
			LineItems:    lineItems(),
		})
		assert.ErrorIs(t, err, quotations.ErrInvalidTransition)
	})

	t.Run("invalid line items", func(t *testing.T) {
		e := newEnv()
		b := e.seedInProgress()

		for _, items := range [][]models.LineItemRequest{
			nil,
			{{Name: "x", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}},
			{{Name: "x", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}},
		} {
			_, err := e.svc.Create(context.Background(), b.ID, &models.CreateQuotationRequest{
				TechnicianID: technicianID,
				LineItems:    items,
			})
			assert.ErrorIs(t, err, quotations.ErrInvalidInput)
		}

		stored, _ := e.store.Booking(b.ID)
		assert.Equal(t, domain.StatusInProgress, stored.Status)
	})
}

func TestApprove_AddsCostsToBooking(t *testing.T) {
	e := newEnv()
	b := e.seedInProgress()
	q := e.createQuotation(t, b.ID)

	resp, err := e.svc.Approve(context.Background(), q.ID, customer())
	require.NoError(t, err)

	assert.Equal(t, "approved", resp.Status)
	require.NotNil(t, resp.DecidedBy)
	assert.Equal(t, customerID, *resp.DecidedBy)

	stored, _ := e.store.Booking(b.ID)
	assert.True(t, stored.SparePartsCost.Equal(decimal.RequireFromString("120")))
	assert.True(t, stored.VATAmount.Equal(decimal.RequireFromString("48")))
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("368")))
	assert.True(t, stored.TotalIsConsistent())
	assert.Equal(t, domain.BookingPaymentPending, stored.PaymentStatus)
	assert.Equal(t, domain.StatusQuotationPending, stored.Status, "booking advances once the extra amount is paid")

	assert.Equal(t, []string{domain.TemplateQuotationApproved}, e.notifier.Templates(technicianID))

	_, err = e.svc.Approve(context.Background(), q.ID, customer())
	assert.ErrorIs(t, err, quotations.ErrAlreadyProcessed)
}

func TestApprove_OtherCustomerDenied(t *testing.T) {
	e := newEnv()
	b := e.seedInProgress()
	q := e.createQuotation(t, b.ID)

	_, err := e.svc.Approve(context.Background(), q.ID, &models.DecisionRequest{UserID: 77, Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, quotations.ErrAccessDenied)

	stored, _ := e.store.Quotation(q.ID)
	assert.Equal(t, domain.QuotationPending, stored.Status)
}

func TestApprove_ExpiredQuotation(t *testing.T) {
	e := newEnv()
	b := e.seedInProgress()
	q := e.createQuotation(t, b.ID)

	e.clock.Advance(24 * time.Hour)

	_, err := e.svc.Approve(context.Background(), q.ID, customer())
	assert.ErrorIs(t, err, quotations.ErrQuotationExpired)

	storedQ, _ := e.store.Quotation(q.ID)
	assert.Equal(t, domain.QuotationExpired, storedQ.Status)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusInProgress, stored.Status)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("230")))
}

func TestReject_RevertsBooking(t *testing.T) {
	e := newEnv()
	b := e.seedInProgress()
	q := e.createQuotation(t, b.ID)

	resp, err := e.svc.Reject(context.Background(), q.ID, customer())
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.Status)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusInProgress, stored.Status)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("230")))
	assert.Equal(t, domain.BookingPaymentPaid, stored.PaymentStatus)

	assert.Equal(t, []string{domain.TemplateQuotationRejected}, e.notifier.Templates(technicianID))

	// после отказа техник может предложить новую квотацию
	e.createQuotation(t, b.ID)
}

func TestExpireStale(t *testing.T) {
	e := newEnv()
	stale := e.seedInProgress()
	fresh := e.seedInProgress()

	staleQ := e.createQuotation(t, stale.ID)
	e.clock.Advance(12 * time.Hour)
	freshQ := e.createQuotation(t, fresh.ID)
	e.clock.Advance(13 * time.Hour)

	count, err := e.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	q, _ := e.store.Quotation(staleQ.ID)
	assert.Equal(t, domain.QuotationExpired, q.Status)
	b, _ := e.store.Booking(stale.ID)
	assert.Equal(t, domain.StatusInProgress, b.Status)

	q, _ = e.store.Quotation(freshQ.ID)
	assert.Equal(t, domain.QuotationPending, q.Status)
	b, _ = e.store.Booking(fresh.ID)
	assert.Equal(t, domain.StatusQuotationPending, b.Status)

	count, err = e.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListByBooking(t *testing.T) {
	e := newEnv()
	b := e.seedInProgress()
	first := e.createQuotation(t, b.ID)
	_, err := e.svc.Reject(context.Background(), first.ID, customer())
	require.NoError(t, err)
	second := e.createQuotation(t, b.ID)

	resp, err := e.svc.ListByBooking(context.Background(), b.ID, &models.DecisionRequest{UserID: technicianID, Role: domain.RoleTechnician})
	require.NoError(t, err)
	require.Len(t, resp.Quotations, 2)
	assert.Equal(t, second.ID, resp.Quotations[0].ID)
	assert.Equal(t, first.ID, resp.Quotations[1].ID)

	_, err = e.svc.ListByBooking(context.Background(), b.ID, &models.DecisionRequest{UserID: 77, Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, quotations.ErrAccessDenied)
}

func TestBookingLeavesQuotationPending_ClosesQuotation(t *testing.T) {
	tests := []struct {
		name       string
		move       func(e *env, bookingID int64) error
		wantStatus domain.BookingStatus
	}{
		{
			name: "customer cancels",
			move: func(e *env, bookingID int64) error {
				_, err := e.bookings.Cancel(context.Background(), bookingID, &bookingModels.CancelBookingRequest{
					Requester:          bookingModels.Requester{UserID: customerID, Role: domain.RoleCustomer},
					CancellationReason: "changed my mind",
				})
				return err
			},
			wantStatus: domain.StatusCancelled,
		},
		{
			name: "technician completes",
			move: func(e *env, bookingID int64) error {
				_, err := e.bookings.Transition(context.Background(), bookingID, &bookingModels.UpdateStatusRequest{
					Requester: bookingModels.Requester{UserID: technicianID, Role: domain.RoleTechnician},
					Status:    string(domain.StatusCompleted),
				})
				return err
			},
			wantStatus: domain.StatusCompleted,
		},
		{
			name: "technician resumes work",
			move: func(e *env, bookingID int64) error {
				_, err := e.bookings.Transition(context.Background(), bookingID, &bookingModels.UpdateStatusRequest{
					Requester: bookingModels.Requester{UserID: technicianID, Role: domain.RoleTechnician},
					Status:    string(domain.StatusInProgress),
				})
				return err
			},
			wantStatus: domain.StatusInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			b := e.seedInProgress()
			q := e.createQuotation(t, b.ID)

			require.NoError(t, tt.move(e, b.ID))

			storedQ, _ := e.store.Quotation(q.ID)
			assert.Equal(t, domain.QuotationExpired, storedQ.Status)
			require.NotNil(t, storedQ.DecidedAt)
			assert.Equal(t,
				[]string{domain.ActionQuotationCreated, domain.ActionQuotationExpired},
				e.store.AuditActions(domain.ResourceQuotation, q.ID))

			_, err := e.svc.Approve(context.Background(), q.ID, customer())
			assert.ErrorIs(t, err, quotations.ErrAlreadyProcessed)
			_, err = e.svc.Reject(context.Background(), q.ID, customer())
			assert.ErrorIs(t, err, quotations.ErrAlreadyProcessed)

			stored, _ := e.store.Booking(b.ID)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.True(t, stored.SparePartsCost.IsZero())
			assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("230")))
			assert.Equal(t, domain.BookingPaymentPaid, stored.PaymentStatus)
		})
	}
}

func TestDecision_RequiresQuotationPendingBooking(t *testing.T) {
	e := newEnv()
	b := e.seedInProgress()
	b.Status = domain.StatusCancelled
	e.store.PutBooking(b)

	// pending квотация у бронирования, которое уже вышло из quotation_pending
	q := e.store.PutQuotation(domain.Quotation{
		BookingID:      b.ID,
		TechnicianID:   technicianID,
		AdditionalCost: decimal.RequireFromString("120"),
		VATAmount:      decimal.RequireFromString("18"),
		Status:         domain.QuotationPending,
		ExpiresAt:      e.clock.Now().Add(24 * time.Hour),
	})

	_, err := e.svc.Approve(context.Background(), q.ID, customer())
	assert.ErrorIs(t, err, quotations.ErrInvalidTransition)
	_, err = e.svc.Reject(context.Background(), q.ID, customer())
	assert.ErrorIs(t, err, quotations.ErrInvalidTransition)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("230")))
	assert.Equal(t, domain.BookingPaymentPaid, stored.PaymentStatus)

	storedQ, _ := e.store.Quotation(q.ID)
	assert.Equal(t, domain.QuotationPending, storedQ.Status)
}
