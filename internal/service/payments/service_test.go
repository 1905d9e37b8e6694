package payments_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/audit"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/testutil/fakes"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

const customerID int64 = 10

type env struct {
	store    *fakes.Store
	clock    *fakes.Clock
	notifier *fakes.Notifier
	metrics  *fakes.Metrics
	gateway  *fakes.Gateway
	wallet   *wallet.Service
	svc      *payments.Service
}

func newEnv() *env {
	store := fakes.NewStore()
	clock := fakes.NewClock(time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	notifier := &fakes.Notifier{}
	metrics := &fakes.Metrics{}
	gateway := &fakes.Gateway{}
	tx := fakes.NewTxManager(store)
	auditSvc := audit.NewService(&fakes.AuditRepository{S: store})
	bookingRepo := &fakes.BookingRepository{S: store}

	bookingSvc := bookings.NewService(bookingRepo, &fakes.StatusLogRepository{S: store}, &fakes.QuotationRepository{S: store}, auditSvc, notifier, tx, logger.NewNop())
	bookingSvc.SetTimeProvider(clock)

	walletSvc := wallet.NewService(
		&fakes.WalletRepository{S: store},
		&fakes.WalletTransactionRepository{S: store},
		auditSvc, tx, metrics, logger.NewNop(),
	)

	svc := payments.NewService(
		bookingRepo,
		&fakes.PaymentRepository{S: store},
		walletSvc,
		bookingSvc,
		map[domain.PaymentMethod]payments.Gateway{domain.MethodGatewayA: gateway},
		auditSvc,
		notifier,
		tx,
		metrics,
		payments.Config{Currency: "SAR", GatewayTimeout: time.Second},
		logger.NewNop(),
	)
	svc.SetTimeProvider(clock)

	return &env{
		store:    store,
		clock:    clock,
		notifier: notifier,
		metrics:  metrics,
		gateway:  gateway,
		wallet:   walletSvc,
		svc:      svc,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedBooking создает pending бронирование на 230.00
func (e *env) seedBooking(status domain.BookingStatus) domain.Booking {
	b := domain.Booking{
		CustomerID:     customerID,
		ServiceID:      5,
		ServiceCost:    dec("200"),
		DiscountAmount: decimal.Zero,
		VATAmount:      dec("30"),
		SparePartsCost: decimal.Zero,
		Status:         status,
		PaymentStatus:  domain.BookingPaymentPending,
		ScheduledDate:  time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC),
	}
	b.RecomputeTotal()
	return e.store.PutBooking(b)
}

func (e *env) topUp(t *testing.T, amount string) {
	t.Helper()
	_, err := e.wallet.Credit(context.Background(), customerID, dec(amount), "topup", domain.ReferenceTopup, nil)
	require.NoError(t, err)
}

func (e *env) balance() decimal.Decimal {
	w, _ := e.store.Wallet(customerID)
	return w.Balance
}

func split(walletAmount, gatewayAmount string) *models.CreatePaymentRequest {
	return &models.CreatePaymentRequest{
		ActorID:       customerID,
		WalletAmount:  dec(walletAmount),
		GatewayAmount: dec(gatewayAmount),
		Method:        domain.MethodGatewayA,
		SourceToken:   "tok_visa",
	}
}

func TestCreatePayment_WalletOnlyConfirmsBooking(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	e.topUp(t, "300")

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, &models.CreatePaymentRequest{
		ActorID:       customerID,
		WalletAmount:  dec("230"),
		GatewayAmount: decimal.Zero,
		Method:        domain.MethodWallet,
	})
	require.NoError(t, err)

	assert.Equal(t, "paid", resp.Status)
	assert.NotNil(t, resp.PaidAt)
	assert.Empty(t, e.gateway.Requests())

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, domain.BookingPaymentPaid, stored.PaymentStatus)

	assert.True(t, e.balance().Equal(dec("70")))
	ledger := e.store.WalletTransactions(customerID)
	require.Len(t, ledger, 2)
	assert.Equal(t, domain.WalletDebit, ledger[1].Type)
	assert.Equal(t, domain.ReferenceBooking, ledger[1].ReferenceType)
	assert.Equal(t, b.ID, *ledger[1].ReferenceID)

	assert.Equal(t,
		[]string{domain.ActionPaymentCreated, domain.ActionPaymentPaid},
		e.store.AuditActions(domain.ResourcePayment, resp.ID))
	assert.Equal(t,
		[]string{domain.TemplateBookingStatusChanged, domain.TemplatePaymentPaid},
		e.notifier.Templates(customerID))
	assert.Contains(t, e.metrics.Events(), "payment:wallet:paid")
}

func TestCreatePayment_SplitCapturedByGateway(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	e.topUp(t, "30")

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, split("30", "200"))
	require.NoError(t, err)

	assert.Equal(t, "paid", resp.Status)
	require.NotNil(t, resp.GatewayReference)
	assert.Equal(t, "ch_1", *resp.GatewayReference)
	assert.True(t, resp.TotalAmount.Equal(dec("230")))

	requests := e.gateway.Requests()
	require.Len(t, requests, 1)
	assert.True(t, requests[0].Amount.Equal(dec("200")))
	assert.Equal(t, "SAR", requests[0].Currency)
	assert.Equal(t, "tok_visa", requests[0].SourceToken)
	assert.Equal(t, fmt.Sprintf("payment-%d", resp.ID), requests[0].IdempotencyKey)
	assert.Equal(t, fmt.Sprint(resp.ID), requests[0].Metadata["payment_id"])
	assert.Equal(t, fmt.Sprint(b.ID), requests[0].Metadata["booking_id"])

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, domain.BookingPaymentPaid, stored.PaymentStatus)
	assert.True(t, e.balance().IsZero())
}

func TestCreatePayment_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     *models.CreatePaymentRequest
		wantErr error
	}{
		{
			name:    "negative portion",
			req:     split("-1", "231"),
			wantErr: payments.ErrInvalidAmount,
		},
		{
			name:    "zero total",
			req:     split("0", "0"),
			wantErr: payments.ErrInvalidAmount,
		},
		{
			name: "wallet method with gateway portion",
			req: &models.CreatePaymentRequest{
				ActorID: customerID, WalletAmount: dec("30"), GatewayAmount: dec("200"), Method: domain.MethodWallet,
			},
			wantErr: payments.ErrInvalidInput,
		},
		{
			name: "gateway method without gateway portion",
			req: &models.CreatePaymentRequest{
				ActorID: customerID, WalletAmount: dec("230"), Method: domain.MethodGatewayA, SourceToken: "tok",
			},
			wantErr: payments.ErrInvalidInput,
		},
		{
			name: "gateway not configured",
			req: &models.CreatePaymentRequest{
				ActorID: customerID, GatewayAmount: dec("230"), Method: domain.MethodGatewayB, SourceToken: "tok",
			},
			wantErr: payments.ErrInvalidInput,
		},
		{
			name: "missing source token",
			req: &models.CreatePaymentRequest{
				ActorID: customerID, GatewayAmount: dec("230"), Method: domain.MethodGatewayA,
			},
			wantErr: payments.ErrInvalidInput,
		},
		{
			name:    "amount does not match outstanding",
			req:     split("0", "100"),
			wantErr: payments.ErrAmountMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			b := e.seedBooking(domain.StatusPending)

			_, err := e.svc.CreatePayment(context.Background(), b.ID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, e.store.Payments(b.ID))
			assert.Empty(t, e.gateway.Requests())
		})
	}
}

func TestCreatePayment_AccessAndState(t *testing.T) {
	t.Run("other customer", func(t *testing.T) {
		e := newEnv()
		b := e.seedBooking(domain.StatusPending)
		req := split("0", "230")
		req.ActorID = 77

		_, err := e.svc.CreatePayment(context.Background(), b.ID, req)
		assert.ErrorIs(t, err, payments.ErrAccessDenied)
	})

	t.Run("cancelled booking", func(t *testing.T) {
		e := newEnv()
		b := e.seedBooking(domain.StatusCancelled)

		_, err := e.svc.CreatePayment(context.Background(), b.ID, split("0", "230"))
		assert.ErrorIs(t, err, payments.ErrInvalidInput)
	})

	t.Run("unknown booking", func(t *testing.T) {
		e := newEnv()

		_, err := e.svc.CreatePayment(context.Background(), 404, split("0", "230"))
		assert.ErrorIs(t, err, payments.ErrBookingNotFound)
	})
}

func TestCreatePayment_InsufficientWalletLeavesNothingBehind(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	e.topUp(t, "10")

	_, err := e.svc.CreatePayment(context.Background(), b.ID, split("30", "200"))
	assert.ErrorIs(t, err, payments.ErrInsufficientBalance)

	assert.Empty(t, e.store.Payments(b.ID))
	assert.Empty(t, e.gateway.Requests())
	assert.True(t, e.balance().Equal(dec("10")))
	assert.Len(t, e.store.WalletTransactions(customerID), 1)
}

func TestCreatePayment_DeclineReversesWalletPortion(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	e.topUp(t, "30")
	e.gateway.ChargeFunc = func(*domain.ChargeRequest) (*domain.ChargeResult, error) {
		return nil, fmt.Errorf("%w: card_declined", domain.ErrChargeDeclined)
	}

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, split("30", "200"))
	require.NoError(t, err)

	assert.Equal(t, "failed", resp.Status)
	require.NotNil(t, resp.FailureReason)
	assert.Contains(t, *resp.FailureReason, "card_declined")

	assert.True(t, e.balance().Equal(dec("30")))
	ledger := e.store.WalletTransactions(customerID)
	require.Len(t, ledger, 3)
	assert.Equal(t, domain.WalletDebit, ledger[1].Type)
	assert.Equal(t, domain.WalletCredit, ledger[2].Type)
	assert.Equal(t, domain.ReferenceReversal, ledger[2].ReferenceType)
	assert.Equal(t, resp.ID, *ledger[2].ReferenceID)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, domain.BookingPaymentPending, stored.PaymentStatus)
	assert.Contains(t, e.notifier.Templates(customerID), domain.TemplatePaymentFailed)

	// failed платеж не занимает остаток, клиент может оплатить снова
	e.gateway.ChargeFunc = nil
	retry, err := e.svc.CreatePayment(context.Background(), b.ID, split("0", "230"))
	require.NoError(t, err)
	assert.Equal(t, "paid", retry.Status)
}

func TestCreatePayment_TimeoutLeavesPendingUntilWebhook(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	e.topUp(t, "30")
	e.gateway.ChargeFunc = func(*domain.ChargeRequest) (*domain.ChargeResult, error) {
		return nil, context.DeadlineExceeded
	}

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, split("30", "200"))
	require.ErrorIs(t, err, payments.ErrGatewayTimeout)
	require.NotNil(t, resp)
	assert.Equal(t, "pending", resp.Status)
	assert.Nil(t, resp.GatewayReference)
	assert.Contains(t, e.metrics.Events(), "payment:gateway-A:timeout")

	assert.True(t, e.balance().IsZero(), "wallet portion stays reserved while the outcome is unknown")

	// повторная оплата того же остатка не проходит, пока платеж pending
	_, err = e.svc.CreatePayment(context.Background(), b.ID, split("0", "230"))
	assert.ErrorIs(t, err, payments.ErrAmountMismatch)

	err = e.svc.ReconcileGatewayEvent(context.Background(), &domain.GatewayEvent{
		Provider:         "stripe",
		Method:           domain.MethodGatewayA,
		EventID:          "evt_1",
		EventType:        "charge.succeeded",
		Kind:             domain.GatewayEventCaptured,
		GatewayReference: "ch_late",
		PaymentID:        resp.ID,
	})
	require.NoError(t, err)

	p, _ := e.store.Payment(resp.ID)
	assert.Equal(t, domain.PaymentPaid, p.Status)
	require.NotNil(t, p.GatewayReference)
	assert.Equal(t, "ch_late", *p.GatewayReference)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, domain.BookingPaymentPaid, stored.PaymentStatus)
}

func TestReconcileGatewayEvent_TerminalPaymentIsUntouched(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, split("0", "230"))
	require.NoError(t, err)
	require.Equal(t, "paid", resp.Status)

	err = e.svc.ReconcileGatewayEvent(context.Background(), &domain.GatewayEvent{
		Provider:         "stripe",
		Method:           domain.MethodGatewayA,
		EventID:          "evt_2",
		Kind:             domain.GatewayEventFailed,
		GatewayReference: *resp.GatewayReference,
		FailureReason:    "late failure",
	})
	require.NoError(t, err)

	p, _ := e.store.Payment(resp.ID)
	assert.Equal(t, domain.PaymentPaid, p.Status)
	assert.Nil(t, p.FailureReason)
}

func TestReconcileGatewayEvent_UnknownPayment(t *testing.T) {
	e := newEnv()

	err := e.svc.ReconcileGatewayEvent(context.Background(), &domain.GatewayEvent{
		Provider:         "omise",
		Method:           domain.MethodGatewayB,
		EventID:          "evnt_1",
		Kind:             domain.GatewayEventCaptured,
		GatewayReference: "chrg_missing",
	})
	assert.ErrorIs(t, err, payments.ErrPaymentNotFound)
}

func TestReconcileGatewayEvent_IgnoresInformationalEvents(t *testing.T) {
	e := newEnv()

	err := e.svc.ReconcileGatewayEvent(context.Background(), &domain.GatewayEvent{
		Provider: "stripe",
		Method:   domain.MethodGatewayA,
		EventID:  "evt_3",
		Kind:     domain.GatewayEventIgnored,
	})
	assert.NoError(t, err)
}

func TestReconcilePending_ResolvesAuthorizedPayments(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	e.gateway.ChargeFunc = func(*domain.ChargeRequest) (*domain.ChargeResult, error) {
		return &domain.ChargeResult{Reference: "ch_auth", Status: domain.ChargePending}, nil
	}

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, split("0", "230"))
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.BookingPaymentAuthorized, stored.PaymentStatus)
	assert.Equal(t, []string{domain.ActionPaymentCreated, domain.ActionPaymentAuthorized},
		e.store.AuditActions(domain.ResourcePayment, resp.ID))

	// слишком свежий платеж не трогаем
	resolved, err := e.svc.ReconcilePending(context.Background(), 10*time.Minute, 50)
	require.NoError(t, err)
	assert.Zero(t, resolved)
	assert.Empty(t, e.gateway.Lookups())

	e.clock.Advance(15 * time.Minute)
	e.gateway.LookupFunc = func(reference string) (*domain.ChargeResult, error) {
		return &domain.ChargeResult{Reference: reference, Status: domain.ChargeCaptured}, nil
	}

	resolved, err = e.svc.ReconcilePending(context.Background(), 10*time.Minute, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, []string{"ch_auth"}, e.gateway.Lookups())

	p, _ := e.store.Payment(resp.ID)
	assert.Equal(t, domain.PaymentPaid, p.Status)
	stored, _ = e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
}

func TestReconcilePending_GatewayErrorIsNotAnOutcome(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	e.gateway.ChargeFunc = func(*domain.ChargeRequest) (*domain.ChargeResult, error) {
		return &domain.ChargeResult{Reference: "ch_auth", Status: domain.ChargePending}, nil
	}

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, split("0", "230"))
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	e.gateway.LookupFunc = func(string) (*domain.ChargeResult, error) {
		return nil, context.DeadlineExceeded
	}

	resolved, err := e.svc.ReconcilePending(context.Background(), 10*time.Minute, 50)
	require.NoError(t, err)
	assert.Zero(t, resolved)

	p, _ := e.store.Payment(resp.ID)
	assert.Equal(t, domain.PaymentPending, p.Status)
}

func TestReconcilePending_PaymentWithoutGatewayReference(t *testing.T) {
	timedOut := func(t *testing.T) (*env, domain.Booking, int64) {
		t.Helper()
		e := newEnv()
		b := e.seedBooking(domain.StatusPending)
		e.topUp(t, "30")
		e.gateway.ChargeFunc = func(*domain.ChargeRequest) (*domain.ChargeResult, error) {
			return nil, context.DeadlineExceeded
		}

		resp, err := e.svc.CreatePayment(context.Background(), b.ID, split("30", "200"))
		require.ErrorIs(t, err, payments.ErrGatewayTimeout)
		require.Nil(t, resp.GatewayReference)

		e.gateway.ChargeFunc = nil
		e.clock.Advance(48 * time.Hour)
		return e, b, resp.ID
	}

	t.Run("charge never reached the gateway", func(t *testing.T) {
		e, b, paymentID := timedOut(t)
		e.gateway.FindFunc = func(id int64) (*domain.ChargeResult, error) {
			return nil, fmt.Errorf("%w: payment %d", domain.ErrChargeNotFound, id)
		}

		resolved, err := e.svc.ReconcilePending(context.Background(), time.Hour, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, resolved)
		assert.Equal(t, []int64{paymentID}, e.gateway.Finds())
		assert.Empty(t, e.gateway.Lookups())

		p, _ := e.store.Payment(paymentID)
		assert.Equal(t, domain.PaymentFailed, p.Status)
		require.NotNil(t, p.FailureReason)
		assert.True(t, e.balance().Equal(dec("30")), "wallet portion is returned")

		stored, _ := e.store.Booking(b.ID)
		assert.Equal(t, domain.StatusPending, stored.Status)
		assert.Equal(t, domain.BookingPaymentPending, stored.PaymentStatus)

		retry, err := e.svc.CreatePayment(context.Background(), b.ID, split("30", "200"))
		require.NoError(t, err)
		assert.Equal(t, "paid", retry.Status)
	})

	t.Run("charge found by payment id", func(t *testing.T) {
		e, b, paymentID := timedOut(t)
		e.gateway.FindFunc = func(int64) (*domain.ChargeResult, error) {
			return &domain.ChargeResult{Reference: "pi_late", Status: domain.ChargeCaptured}, nil
		}

		resolved, err := e.svc.ReconcilePending(context.Background(), time.Hour, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, resolved)

		p, _ := e.store.Payment(paymentID)
		assert.Equal(t, domain.PaymentPaid, p.Status)
		require.NotNil(t, p.GatewayReference)
		assert.Equal(t, "pi_late", *p.GatewayReference)

		stored, _ := e.store.Booking(b.ID)
		assert.Equal(t, domain.StatusConfirmed, stored.Status)
		assert.True(t, e.balance().IsZero())
	})

	t.Run("search failure keeps the payment pending", func(t *testing.T) {
		e, _, paymentID := timedOut(t)
		e.gateway.FindFunc = func(int64) (*domain.ChargeResult, error) {
			return nil, context.DeadlineExceeded
		}

		resolved, err := e.svc.ReconcilePending(context.Background(), time.Hour, 50)
		require.NoError(t, err)
		assert.Zero(t, resolved)

		p, _ := e.store.Payment(paymentID)
		assert.Equal(t, domain.PaymentPending, p.Status)
		assert.True(t, e.balance().IsZero())
	})
}

func TestPayment_AfterApprovedQuotationResumesWork(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusQuotationPending)
	e.store.PutPayment(domain.Payment{
		BookingID:     b.ID,
		UserID:        customerID,
		Method:        domain.MethodWallet,
		TotalAmount:   dec("230"),
		WalletPortion: dec("230"),
		Currency:      "SAR",
		Status:        domain.PaymentPaid,
	})

	// одобренная квотация: запчасти 120 + НДС 18
	b.SparePartsCost = dec("120")
	b.VATAmount = dec("48")
	b.RecomputeTotal()
	e.store.PutBooking(b)
	e.topUp(t, "138")

	list, err := e.svc.ListByBooking(context.Background(), b.ID, models.Requester{UserID: customerID, Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.True(t, list.OutstandingAmount.Equal(dec("138")))

	resp, err := e.svc.CreatePayment(context.Background(), b.ID, &models.CreatePaymentRequest{
		ActorID:      customerID,
		WalletAmount: dec("138"),
		Method:       domain.MethodWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.Status)

	stored, _ := e.store.Booking(b.ID)
	assert.Equal(t, domain.StatusInProgress, stored.Status)
	assert.Equal(t, domain.BookingPaymentPaid, stored.PaymentStatus)
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	paidBooking := func(t *testing.T) (*env, domain.Booking, *models.PaymentResponse) {
		e := newEnv()
		b := e.seedBooking(domain.StatusPending)
		e.topUp(t, "30")
		resp, err := e.svc.CreatePayment(ctx, b.ID, split("30", "200"))
		require.NoError(t, err)
		require.Equal(t, "paid", resp.Status)
		return e, b, resp
	}

	t.Run("credits the full amount to the wallet", func(t *testing.T) {
		e, b, paid := paidBooking(t)

		resp, err := e.svc.Refund(ctx, b.ID, paid.ID, &models.RefundRequest{
			Requester: models.Requester{UserID: customerID, Role: domain.RoleCustomer},
			Reason:    "service not needed",
		})
		require.NoError(t, err)

		assert.Equal(t, "refunded", resp.Status)
		require.NotNil(t, resp.RefundAmount)
		assert.True(t, resp.RefundAmount.Equal(dec("230")))
		assert.Equal(t, "service not needed", *resp.RefundReason)

		assert.True(t, e.balance().Equal(dec("230")))
		ledger := e.store.WalletTransactions(customerID)
		assert.Equal(t, domain.ReferenceRefund, ledger[len(ledger)-1].ReferenceType)

		stored, _ := e.store.Booking(b.ID)
		assert.Equal(t, domain.BookingPaymentRefunded, stored.PaymentStatus)
		assert.Contains(t, e.notifier.Templates(customerID), domain.TemplatePaymentRefunded)

		_, err = e.svc.Refund(ctx, b.ID, paid.ID, &models.RefundRequest{
			Requester: models.Requester{UserID: customerID, Role: domain.RoleCustomer},
		})
		assert.ErrorIs(t, err, payments.ErrPaymentNotRefundable)
	})

	t.Run("booking is refunded only after its last paid payment", func(t *testing.T) {
		e := newEnv()
		b := e.seedBooking(domain.StatusCompleted)
		b.SparePartsCost = dec("120")
		b.VATAmount = dec("48")
		b.RecomputeTotal()
		b.PaymentStatus = domain.BookingPaymentPaid
		e.store.PutBooking(b)

		base := e.store.PutPayment(domain.Payment{
			BookingID: b.ID, UserID: customerID, Method: domain.MethodWallet,
			TotalAmount: dec("230"), WalletPortion: dec("230"), Currency: "SAR", Status: domain.PaymentPaid,
		})
		parts := e.store.PutPayment(domain.Payment{
			BookingID: b.ID, UserID: customerID, Method: domain.MethodWallet,
			TotalAmount: dec("138"), WalletPortion: dec("138"), Currency: "SAR", Status: domain.PaymentPaid,
		})
		admin := models.Requester{UserID: 1, Role: domain.RoleAdmin}

		_, err := e.svc.Refund(ctx, b.ID, parts.ID, &models.RefundRequest{Requester: admin})
		require.NoError(t, err)

		stored, _ := e.store.Booking(b.ID)
		assert.Equal(t, domain.BookingPaymentPending, stored.PaymentStatus)
		assert.True(t, e.balance().Equal(dec("138")))

		_, err = e.svc.Refund(ctx, b.ID, base.ID, &models.RefundRequest{Requester: admin})
		require.NoError(t, err)

		stored, _ = e.store.Booking(b.ID)
		assert.Equal(t, domain.BookingPaymentRefunded, stored.PaymentStatus)
		assert.True(t, e.balance().Equal(dec("368")))
	})

	t.Run("booking in progress is not refundable", func(t *testing.T) {
		e, b, paid := paidBooking(t)
		stored, _ := e.store.Booking(b.ID)
		stored.Status = domain.StatusInProgress
		e.store.PutBooking(stored)

		_, err := e.svc.Refund(ctx, b.ID, paid.ID, &models.RefundRequest{
			Requester: models.Requester{UserID: 1, Role: domain.RoleAdmin},
		})
		assert.ErrorIs(t, err, payments.ErrPaymentNotRefundable)
		assert.True(t, e.balance().IsZero())
	})

	t.Run("other customer is denied", func(t *testing.T) {
		e, b, paid := paidBooking(t)

		_, err := e.svc.Refund(ctx, b.ID, paid.ID, &models.RefundRequest{
			Requester: models.Requester{UserID: 77, Role: domain.RoleCustomer},
		})
		assert.ErrorIs(t, err, payments.ErrAccessDenied)
	})

	t.Run("payment of another booking", func(t *testing.T) {
		e, _, paid := paidBooking(t)
		other := e.seedBooking(domain.StatusCompleted)

		_, err := e.svc.Refund(ctx, other.ID, paid.ID, &models.RefundRequest{
			Requester: models.Requester{UserID: customerID, Role: domain.RoleCustomer},
		})
		assert.ErrorIs(t, err, payments.ErrPaymentNotFound)
	})
}

func TestGetPayment(t *testing.T) {
	e := newEnv()
	b := e.seedBooking(domain.StatusPending)
	paid, err := e.svc.CreatePayment(context.Background(), b.ID, split("0", "230"))
	require.NoError(t, err)

	resp, err := e.svc.GetPayment(context.Background(), b.ID, paid.ID, models.Requester{UserID: customerID, Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, paid.ID, resp.ID)

	_, err = e.svc.GetPayment(context.Background(), b.ID, 999, models.Requester{UserID: customerID, Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, payments.ErrPaymentNotFound)

	_, err = e.svc.GetPayment(context.Background(), b.ID, paid.ID, models.Requester{UserID: 77, Role: domain.RoleTechnician})
	assert.ErrorIs(t, err, payments.ErrAccessDenied)
}
