package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	bookingRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/booking"
	paymentRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/payment"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/payments/models"
	walletService "github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/ptr"
)

const statusTimeout = "timeout"

const chargeNotCreatedReason = "charge was not created at the gateway"

// Config параметры платежей
type Config struct {
	Currency       string
	GatewayTimeout time.Duration
}

// Service оркестратор раздельных платежей (кошелек + шлюз)
type Service struct {
	bookingRepo  BookingRepository
	paymentRepo  PaymentRepository
	wallet       WalletLedger
	bookings     BookingTransitioner
	gateways     map[domain.PaymentMethod]Gateway
	audit        AuditRecorder
	notifier     Notifier
	txManager    TransactionManager
	metrics      Metrics
	timeProvider TimeProvider
	config       Config
	logger       Logger
}

// NewService создает новый экземпляр сервиса платежей
func NewService(
	bookingRepo BookingRepository,
	paymentRepo PaymentRepository,
	wallet WalletLedger,
	bookings BookingTransitioner,
	gateways map[domain.PaymentMethod]Gateway,
	audit AuditRecorder,
	notifier Notifier,
	txManager TransactionManager,
	metrics Metrics,
	config Config,
	logger Logger,
) *Service {
	if config.Currency == "" {
		config.Currency = domain.DefaultCurrency
	}
	if config.GatewayTimeout <= 0 {
		config.GatewayTimeout = domain.DefaultGatewayTimeoutSeconds * time.Second
	}

	return &Service{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		wallet:       wallet,
		bookings:     bookings,
		gateways:     gateways,
		audit:        audit,
		notifier:     notifier,
		txManager:    txManager,
		metrics:      metrics,
		timeProvider: RealTimeProvider{},
		config:       config,
		logger:       logger,
	}
}

// SetTimeProvider подменяет источник времени
func (s *Service) SetTimeProvider(tp TimeProvider) {
	s.timeProvider = tp
}

// effects изменения, о которых нужно уведомить после коммита
type effects struct {
	booking    *domain.Booking
	fromStatus domain.BookingStatus
	payment    *domain.Payment
	template   string
}

// CreatePayment создает раздельный платеж по остатку бронирования.
// Списание с кошелька и запись платежа выполняются в одной транзакции; шлюз вызывается после коммита.
// При таймауте шлюза возвращается платеж в статусе pending вместе с ErrGatewayTimeout.
func (s *Service) CreatePayment(ctx context.Context, bookingID int64, req *models.CreatePaymentRequest) (*models.PaymentResponse, error) {
	walletAmount := domain.RoundMoney(req.WalletAmount)
	gatewayAmount := domain.RoundMoney(req.GatewayAmount)

	s.logger.Info("CreatePayment: booking id=%d wallet=%s gateway=%s method=%s by user=%d",
		bookingID, walletAmount.String(), gatewayAmount.String(), req.Method, req.ActorID)

	if err := s.validateCreate(walletAmount, gatewayAmount, req); err != nil {
		s.logger.Warn("CreatePayment: invalid request for booking id=%d: %v", bookingID, err)
		return nil, err
	}

	var payment *domain.Payment
	var eff *effects

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		booking, err := s.lockBooking(ctx, "CreatePayment", bookingID)
		if err != nil {
			return err
		}

		if booking.CustomerID != req.ActorID {
			s.logger.Warn("CreatePayment: user=%d does not own booking id=%d", req.ActorID, bookingID)
			return ErrAccessDenied
		}
		if booking.Status == domain.StatusCancelled {
			return fmt.Errorf("%w: booking is cancelled", ErrInvalidInput)
		}

		existing, err := s.paymentRepo.ListByBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("%w: CreatePayment - list payments: %v", ErrInternal, err)
		}

		outstanding := domain.OutstandingAmount(booking.TotalAmount, existing)
		requested := walletAmount.Add(gatewayAmount)
		if !outstanding.IsPositive() || !domain.WithinTolerance(requested, outstanding) {
			return fmt.Errorf("%w: requested %s, outstanding %s",
				ErrAmountMismatch, requested.StringFixed(2), outstanding.StringFixed(2))
		}

		if walletAmount.IsPositive() {
			_, err := s.wallet.Debit(ctx, booking.CustomerID, walletAmount,
				fmt.Sprintf("payment for booking %d", bookingID), domain.ReferenceBooking, ptr.Ptr(bookingID))
			if err != nil {
				if errors.Is(err, walletService.ErrInsufficientBalance) {
					return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
				}
				return fmt.Errorf("%w: CreatePayment - wallet debit: %v", ErrInternal, err)
			}
		}

		payment, err = s.paymentRepo.Create(ctx, &domain.Payment{
			BookingID:      bookingID,
			UserID:         booking.CustomerID,
			Method:         req.Method,
			TotalAmount:    requested,
			WalletPortion:  walletAmount,
			GatewayPortion: gatewayAmount,
			Currency:       s.config.Currency,
			Status:         domain.PaymentPending,
		})
		if err != nil {
			return fmt.Errorf("%w: CreatePayment - insert payment: %v", ErrInternal, err)
		}

		if err := s.audit.Record(ctx, req.ActorID, domain.ActionPaymentCreated, domain.ResourcePayment, payment.ID,
			nil, models.FromDomainPayment(payment)); err != nil {
			return fmt.Errorf("%w: CreatePayment - audit: %v", ErrInternal, err)
		}

		// оплата только кошельком завершается сразу
		if !gatewayAmount.IsPositive() {
			eff, err = s.finalizePaidInTx(ctx, booking, payment, req.ActorID)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("CreatePayment", err)
	}

	if eff != nil {
		s.logger.Info("CreatePayment: payment id=%d paid from wallet", payment.ID)
		s.publish(ctx, eff)
		return models.FromDomainPayment(payment), nil
	}

	result, chargeErr := s.charge(ctx, payment, req.SourceToken)
	if chargeErr != nil {
		if errors.Is(chargeErr, domain.ErrChargeDeclined) {
			s.logger.Warn("CreatePayment: charge for payment id=%d declined: %v", payment.ID, chargeErr)
			updated, err := s.applyOutcome(ctx, payment.ID, &domain.ChargeResult{
				Status:        domain.ChargeFailed,
				FailureReason: chargeErr.Error(),
			}, req.ActorID)
			if err != nil {
				return models.FromDomainPayment(payment), err
			}
			return models.FromDomainPayment(updated), nil
		}

		// исход неизвестен: платеж остается pending до вебхука или сверки
		s.logger.Warn("CreatePayment: gateway call for payment id=%d did not complete: %v", payment.ID, chargeErr)
		s.metrics.PaymentObserved(string(payment.Method), statusTimeout)
		return models.FromDomainPayment(payment), fmt.Errorf("%w: payment id=%d: %v", ErrGatewayTimeout, payment.ID, chargeErr)
	}

	updated, err := s.applyOutcome(ctx, payment.ID, result, req.ActorID)
	if err != nil {
		return models.FromDomainPayment(payment), err
	}

	s.logger.Info("CreatePayment: payment id=%d status=%s after gateway charge", updated.ID, updated.Status)
	return models.FromDomainPayment(updated), nil
}

// ReconcileGatewayEvent применяет подтвержденное шлюзом событие к платежу.
// Платеж ищется по ссылке шлюза, затем по payment_id из метаданных.
// Платеж в итоговом статусе не меняется. События кроме captured и failed игнорируются.
func (s *Service) ReconcileGatewayEvent(ctx context.Context, event *domain.GatewayEvent) error {
	var status domain.ChargeStatus
	switch event.Kind {
	case domain.GatewayEventCaptured:
		status = domain.ChargeCaptured
	case domain.GatewayEventFailed:
		status = domain.ChargeFailed
	default:
		s.logger.Info("ReconcileGatewayEvent: ignoring %s event %s type=%s", event.Provider, event.EventID, event.EventType)
		return nil
	}

	var eff *effects

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		found, err := s.findPaymentForEvent(ctx, event)
		if err != nil {
			return err
		}

		booking, err := s.lockBooking(ctx, "ReconcileGatewayEvent", found.BookingID)
		if err != nil {
			return err
		}

		payment, err := s.lockPayment(ctx, "ReconcileGatewayEvent", found.ID)
		if err != nil {
			return err
		}

		eff, err = s.reconcileInTx(ctx, booking, payment, &domain.ChargeResult{
			Reference:     event.GatewayReference,
			Status:        status,
			FailureReason: event.FailureReason,
			Raw:           event.Raw,
		}, domain.SystemActorID)
		return err
	})
	if err != nil {
		return s.wrapTxError("ReconcileGatewayEvent", err)
	}

	s.publish(ctx, eff)
	return nil
}

// Refund возвращает оплаченный платеж на кошелек клиента.
// Разрешено для платежа в статусе paid и бронирования в статусе completed или confirmed.
func (s *Service) Refund(ctx context.Context, bookingID, paymentID int64, req *models.RefundRequest) (*models.PaymentResponse, error) {
	s.logger.Info("Refund: payment id=%d of booking id=%d by user=%d", paymentID, bookingID, req.UserID)

	reason := strings.TrimSpace(req.Reason)
	if len(reason) > domain.MaxRefundReasonLength {
		return nil, fmt.Errorf("%w: refund reason is too long", ErrInvalidInput)
	}

	var payment *domain.Payment
	var eff *effects

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		booking, err := s.lockBooking(ctx, "Refund", bookingID)
		if err != nil {
			return err
		}

		if req.Role != domain.RoleAdmin && booking.CustomerID != req.UserID {
			s.logger.Warn("Refund: access denied for user=%d to booking id=%d", req.UserID, bookingID)
			return ErrAccessDenied
		}

		payment, err = s.lockPayment(ctx, "Refund", paymentID)
		if err != nil {
			return err
		}
		if payment.BookingID != bookingID {
			return ErrPaymentNotFound
		}

		if payment.Status != domain.PaymentPaid {
			return fmt.Errorf("%w: payment is %s", ErrPaymentNotRefundable, payment.Status)
		}
		if booking.Status != domain.StatusCompleted && booking.Status != domain.StatusConfirmed {
			return fmt.Errorf("%w: booking is %s", ErrPaymentNotRefundable, booking.Status)
		}

		now := s.timeProvider.Now()
		payment.Status = domain.PaymentRefunded
		payment.RefundAmount.Decimal = payment.TotalAmount
		payment.RefundAmount.Valid = true
		payment.RefundedAt = &now
		if reason != "" {
			payment.RefundReason = &reason
		}

		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			return fmt.Errorf("%w: Refund - update payment: %v", ErrInternal, err)
		}

		if _, err := s.wallet.Credit(ctx, booking.CustomerID, payment.TotalAmount,
			fmt.Sprintf("refund of payment %d", payment.ID), domain.ReferenceRefund, ptr.Ptr(payment.ID)); err != nil {
			return fmt.Errorf("%w: Refund - wallet credit: %v", ErrInternal, err)
		}

		oldPaymentStatus := booking.PaymentStatus
		remaining, err := s.paymentRepo.ListByBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("%w: Refund - list payments: %v", ErrInternal, err)
		}
		booking.PaymentStatus = refundedPaymentStatus(booking.TotalAmount, remaining)
		if err := s.bookingRepo.Update(ctx, booking); err != nil {
			return fmt.Errorf("%w: Refund - update booking: %v", ErrInternal, err)
		}

		if err := s.audit.Record(ctx, req.UserID, domain.ActionPaymentRefunded, domain.ResourcePayment, payment.ID,
			map[string]interface{}{"status": domain.PaymentPaid, "bookingPaymentStatus": oldPaymentStatus},
			map[string]interface{}{
				"status":               payment.Status,
				"refundAmount":         payment.TotalAmount,
				"refundReason":         reason,
				"bookingPaymentStatus": booking.PaymentStatus,
			},
		); err != nil {
			return fmt.Errorf("%w: Refund - audit: %v", ErrInternal, err)
		}

		eff = &effects{
			booking:    booking,
			fromStatus: booking.Status,
			payment:    payment,
			template:   domain.TemplatePaymentRefunded,
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("Refund", err)
	}

	s.logger.Info("Refund: payment id=%d refunded, amount=%s", paymentID, payment.TotalAmount.String())
	s.publish(ctx, eff)

	return models.FromDomainPayment(payment), nil
}

// ReconcilePending сверяет со шлюзом pending платежи старше olderThan.
// Платеж со ссылкой проверяется по ссылке; без ссылки (шлюз не ответил на создание) ищется по ID платежа.
// Если шлюз подтверждает, что списания нет, платеж закрывается как failed с возвратом кошелька.
// Неответ шлюза не считается ни успехом, ни отказом. Возвращает число закрытых платежей.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	before := s.timeProvider.Now().Add(-olderThan)

	pending, err := s.paymentRepo.ListStalePending(ctx, before, limit)
	if err != nil {
		s.logger.Error("ReconcilePending: repository error: %v", err)
		return 0, fmt.Errorf("%w: ReconcilePending - list pending: %v", ErrInternal, err)
	}

	resolved := 0
	for _, p := range pending {
		gw, ok := s.gateways[p.Method]
		if !ok {
			s.logger.Warn("ReconcilePending: payment id=%d has unconfigured method=%s", p.ID, p.Method)
			continue
		}

		result, err := s.lookupCharge(ctx, gw, p)
		if err != nil {
			s.logger.Warn("ReconcilePending: gateway lookup for payment id=%d failed: %v", p.ID, err)
			continue
		}
		if result == nil || result.Status == domain.ChargePending {
			continue
		}

		if _, err := s.applyOutcome(ctx, p.ID, result, domain.SystemActorID); err != nil {
			s.logger.Error("ReconcilePending: payment id=%d: %v", p.ID, err)
			continue
		}
		resolved++
	}

	if resolved > 0 {
		s.logger.Info("ReconcilePending: resolved %d of %d pending payments", resolved, len(pending))
	}

	return resolved, nil
}

// GetPayment возвращает платеж бронирования. Доступно клиенту и администратору.
func (s *Service) GetPayment(ctx context.Context, bookingID, paymentID int64, requester models.Requester) (*models.PaymentResponse, error) {
	if _, err := s.getBookingForRead(ctx, "GetPayment", bookingID, requester); err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, paymentRepo.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		s.logger.Error("GetPayment: repository error for payment id=%d: %v", paymentID, err)
		return nil, fmt.Errorf("%w: GetPayment - repository error: %v", ErrInternal, err)
	}
	if payment.BookingID != bookingID {
		return nil, ErrPaymentNotFound
	}

	return models.FromDomainPayment(payment), nil
}

// ListByBooking возвращает платежи бронирования и остаток к оплате
func (s *Service) ListByBooking(ctx context.Context, bookingID int64, requester models.Requester) (*models.PaymentListResponse, error) {
	booking, err := s.getBookingForRead(ctx, "ListByBooking", bookingID, requester)
	if err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error("ListByBooking: repository error for booking id=%d: %v", bookingID, err)
		return nil, fmt.Errorf("%w: ListByBooking - repository error: %v", ErrInternal, err)
	}

	return models.FromDomainPaymentList(booking, payments), nil
}

// Вспомогательные методы

func (s *Service) validateCreate(walletAmount, gatewayAmount decimal.Decimal, req *models.CreatePaymentRequest) error {
	if walletAmount.IsNegative() || gatewayAmount.IsNegative() {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidAmount)
	}
	if !walletAmount.Add(gatewayAmount).IsPositive() {
		return fmt.Errorf("%w: total must be positive", ErrInvalidAmount)
	}

	if !req.Method.IsValid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, req.Method)
	}

	if req.Method == domain.MethodWallet {
		if gatewayAmount.IsPositive() {
			return fmt.Errorf("%w: wallet payment can not have a gateway portion", ErrInvalidInput)
		}
		return nil
	}

	if !gatewayAmount.IsPositive() {
		return fmt.Errorf("%w: gateway payment requires a gateway portion", ErrInvalidInput)
	}
	if _, ok := s.gateways[req.Method]; !ok {
		return fmt.Errorf("%w: payment method %s is not configured", ErrInvalidInput, req.Method)
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return fmt.Errorf("%w: source token is required", ErrInvalidInput)
	}

	return nil
}

func (s *Service) charge(ctx context.Context, payment *domain.Payment, sourceToken string) (*domain.ChargeResult, error) {
	gw := s.gateways[payment.Method]

	callCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	result, err := gw.CreateCharge(callCtx, &domain.ChargeRequest{
		Amount:      payment.GatewayPortion,
		Currency:    payment.Currency,
		SourceToken: sourceToken,
		Metadata: map[string]string{
			"booking_id": strconv.FormatInt(payment.BookingID, 10),
			"payment_id": strconv.FormatInt(payment.ID, 10),
		},
		IdempotencyKey: fmt.Sprintf("payment-%d", payment.ID),
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("gateway returned an empty result")
	}

	return result, nil
}

// lookupCharge запрашивает у шлюза состояние списания платежа
func (s *Service) lookupCharge(ctx context.Context, gw Gateway, p *domain.Payment) (*domain.ChargeResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	if p.GatewayReference != nil {
		return gw.GetCharge(callCtx, *p.GatewayReference)
	}

	result, err := gw.FindCharge(callCtx, p.ID)
	if errors.Is(err, domain.ErrChargeNotFound) {
		s.logger.Warn("lookupCharge: gateway has no charge for payment id=%d", p.ID)
		return &domain.ChargeResult{Status: domain.ChargeFailed, FailureReason: chargeNotCreatedReason}, nil
	}
	return result, err
}

// applyOutcome применяет результат шлюза к платежу в отдельной транзакции
func (s *Service) applyOutcome(ctx context.Context, paymentID int64, result *domain.ChargeResult, actorID int64) (*domain.Payment, error) {
	var payment *domain.Payment
	var eff *effects

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		found, err := s.paymentRepo.GetByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, paymentRepo.ErrPaymentNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("%w: applyOutcome - get payment: %v", ErrInternal, err)
		}

		booking, err := s.lockBooking(ctx, "applyOutcome", found.BookingID)
		if err != nil {
			return err
		}

		payment, err = s.lockPayment(ctx, "applyOutcome", paymentID)
		if err != nil {
			return err
		}

		eff, err = s.reconcileInTx(ctx, booking, payment, result, actorID)
		return err
	})
	if err != nil {
		return nil, s.wrapTxError("applyOutcome", err)
	}

	s.publish(ctx, eff)
	return payment, nil
}

// reconcileInTx переводит pending платеж по результату шлюза. Итоговые статусы не меняются.
func (s *Service) reconcileInTx(
	ctx context.Context,
	booking *domain.Booking,
	payment *domain.Payment,
	result *domain.ChargeResult,
	actorID int64,
) (*effects, error) {
	if payment.IsTerminal() {
		s.logger.Info("reconcileInTx: payment id=%d already %s, nothing to do", payment.ID, payment.Status)
		return nil, nil
	}

	if result.Reference != "" && payment.GatewayReference == nil {
		payment.GatewayReference = ptr.Ptr(result.Reference)
	}
	if len(result.Raw) > 0 {
		payment.GatewayResponse = result.Raw
	}

	switch result.Status {
	case domain.ChargeCaptured:
		return s.finalizePaidInTx(ctx, booking, payment, actorID)
	case domain.ChargeFailed:
		return s.failPaymentInTx(ctx, booking, payment, result.FailureReason, actorID)
	default:
		return s.authorizeInTx(ctx, booking, payment, actorID)
	}
}

// finalizePaidInTx помечает платеж оплаченным и продвигает бронирование:
// pending -> confirmed, quotation_pending -> in_progress
func (s *Service) finalizePaidInTx(ctx context.Context, booking *domain.Booking, payment *domain.Payment, actorID int64) (*effects, error) {
	now := s.timeProvider.Now()
	payment.Status = domain.PaymentPaid
	payment.FailureReason = nil
	if payment.PaidAt == nil {
		payment.PaidAt = &now
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, fmt.Errorf("%w: finalizePaidInTx - update payment: %v", ErrInternal, err)
	}

	if err := s.refreshPaymentStatus(ctx, booking); err != nil {
		return nil, err
	}

	from := booking.Status
	var target domain.BookingStatus
	switch booking.Status {
	case domain.StatusPending:
		target = domain.StatusConfirmed
	case domain.StatusQuotationPending:
		target = domain.StatusInProgress
	}

	if target != "" {
		if err := s.bookings.TransitionInTx(ctx, booking, target, actorID, nil); err != nil {
			return nil, fmt.Errorf("%w: finalizePaidInTx - advance booking: %v", ErrInternal, err)
		}
	} else if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("%w: finalizePaidInTx - update booking: %v", ErrInternal, err)
	}

	if err := s.audit.Record(ctx, actorID, domain.ActionPaymentPaid, domain.ResourcePayment, payment.ID,
		map[string]interface{}{"status": domain.PaymentPending},
		map[string]interface{}{
			"status":               payment.Status,
			"gatewayReference":     payment.GatewayReference,
			"bookingStatus":        booking.Status,
			"bookingPaymentStatus": booking.PaymentStatus,
		},
	); err != nil {
		return nil, fmt.Errorf("%w: finalizePaidInTx - audit: %v", ErrInternal, err)
	}

	return &effects{
		booking:    booking,
		fromStatus: from,
		payment:    payment,
		template:   domain.TemplatePaymentPaid,
	}, nil
}

// failPaymentInTx помечает платеж failed и возвращает списанную с кошелька часть.
// Статус бронирования не меняется, клиент может повторить оплату.
func (s *Service) failPaymentInTx(
	ctx context.Context,
	booking *domain.Booking,
	payment *domain.Payment,
	reason string,
	actorID int64,
) (*effects, error) {
	payment.Status = domain.PaymentFailed
	if reason != "" {
		payment.FailureReason = &reason
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, fmt.Errorf("%w: failPaymentInTx - update payment: %v", ErrInternal, err)
	}

	if payment.WalletPortion.IsPositive() {
		if _, err := s.wallet.Credit(ctx, payment.UserID, payment.WalletPortion,
			fmt.Sprintf("reversal of payment %d", payment.ID), domain.ReferenceReversal, ptr.Ptr(payment.ID)); err != nil {
			return nil, fmt.Errorf("%w: failPaymentInTx - wallet reversal: %v", ErrInternal, err)
		}
	}

	if err := s.refreshPaymentStatus(ctx, booking); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("%w: failPaymentInTx - update booking: %v", ErrInternal, err)
	}

	if err := s.audit.Record(ctx, actorID, domain.ActionPaymentFailed, domain.ResourcePayment, payment.ID,
		map[string]interface{}{"status": domain.PaymentPending},
		map[string]interface{}{
			"status":         payment.Status,
			"failureReason":  reason,
			"walletReversed": payment.WalletPortion,
		},
	); err != nil {
		return nil, fmt.Errorf("%w: failPaymentInTx - audit: %v", ErrInternal, err)
	}

	return &effects{
		booking:    booking,
		fromStatus: booking.Status,
		payment:    payment,
		template:   domain.TemplatePaymentFailed,
	}, nil
}

// authorizeInTx сохраняет ссылку шлюза для платежа, ожидающего подтверждения
func (s *Service) authorizeInTx(ctx context.Context, booking *domain.Booking, payment *domain.Payment, actorID int64) (*effects, error) {
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, fmt.Errorf("%w: authorizeInTx - update payment: %v", ErrInternal, err)
	}

	if err := s.refreshPaymentStatus(ctx, booking); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("%w: authorizeInTx - update booking: %v", ErrInternal, err)
	}

	if err := s.audit.Record(ctx, actorID, domain.ActionPaymentAuthorized, domain.ResourcePayment, payment.ID,
		nil,
		map[string]interface{}{
			"gatewayReference":     payment.GatewayReference,
			"bookingPaymentStatus": booking.PaymentStatus,
		},
	); err != nil {
		return nil, fmt.Errorf("%w: authorizeInTx - audit: %v", ErrInternal, err)
	}

	return nil, nil
}

// refreshPaymentStatus пересчитывает статус оплаты бронирования по его платежам
func (s *Service) refreshPaymentStatus(ctx context.Context, booking *domain.Booking) error {
	payments, err := s.paymentRepo.ListByBooking(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("%w: refreshPaymentStatus - list payments: %v", ErrInternal, err)
	}

	booking.PaymentStatus = bookingPaymentStatus(booking.TotalAmount, payments)
	return nil
}

// bookingPaymentStatus агрегирует статус оплаты бронирования
func bookingPaymentStatus(total decimal.Decimal, payments []*domain.Payment) domain.BookingPaymentStatus {
	if total.Sub(domain.PaidAmount(payments)).LessThanOrEqual(domain.AmountTolerance) {
		return domain.BookingPaymentPaid
	}

	for _, p := range payments {
		if p.Status == domain.PaymentPending && p.GatewayReference != nil {
			return domain.BookingPaymentAuthorized
		}
	}

	return domain.BookingPaymentPending
}

// refundedPaymentStatus статус оплаты после возврата: refunded, только если оплаченных платежей не осталось
func refundedPaymentStatus(total decimal.Decimal, payments []*domain.Payment) domain.BookingPaymentStatus {
	for _, p := range payments {
		if p.Status == domain.PaymentPaid {
			return bookingPaymentStatus(total, payments)
		}
	}
	return domain.BookingPaymentRefunded
}

func (s *Service) findPaymentForEvent(ctx context.Context, event *domain.GatewayEvent) (*domain.Payment, error) {
	if event.GatewayReference != "" {
		p, err := s.paymentRepo.GetByGatewayReference(ctx, event.Method, event.GatewayReference)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, paymentRepo.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: findPaymentForEvent - by reference: %v", ErrInternal, err)
		}
	}

	// ссылка могла не сохраниться, если шлюз не ответил вовремя
	if event.PaymentID > 0 {
		p, err := s.paymentRepo.GetByID(ctx, event.PaymentID)
		if err == nil {
			if event.Method != "" && p.Method != event.Method {
				s.logger.Warn("findPaymentForEvent: payment id=%d method=%s does not match event method=%s",
					p.ID, p.Method, event.Method)
				return nil, ErrPaymentNotFound
			}
			return p, nil
		}
		if !errors.Is(err, paymentRepo.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: findPaymentForEvent - by id: %v", ErrInternal, err)
		}
	}

	s.logger.Warn("findPaymentForEvent: no payment for %s event %s reference=%q",
		event.Provider, event.EventID, event.GatewayReference)
	return nil, ErrPaymentNotFound
}

func (s *Service) getBookingForRead(ctx context.Context, op string, bookingID int64, requester models.Requester) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		s.logger.Error("%s: repository error for booking id=%d: %v", op, bookingID, err)
		return nil, fmt.Errorf("%w: %s - repository error: %v", ErrInternal, op, err)
	}

	if requester.Role != domain.RoleAdmin && booking.CustomerID != requester.UserID {
		s.logger.Warn("%s: access denied for user=%d to booking id=%d", op, requester.UserID, bookingID)
		return nil, ErrAccessDenied
	}

	return booking, nil
}

func (s *Service) lockBooking(ctx context.Context, op string, id int64) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			s.logger.Warn("%s: booking id=%d not found", op, id)
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("%w: %s - lock booking: %v", ErrInternal, op, err)
	}
	return booking, nil
}

func (s *Service) lockPayment(ctx context.Context, op string, id int64) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, paymentRepo.ErrPaymentNotFound) {
			s.logger.Warn("%s: payment id=%d not found", op, id)
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: %s - lock payment: %v", ErrInternal, op, err)
	}
	return payment, nil
}

func (s *Service) wrapTxError(op string, err error) error {
	switch {
	case errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrPaymentNotRefundable):
		return err
	case errors.Is(err, ErrInternal):
		s.logger.Error("%s: %v", op, err)
		return err
	default:
		s.logger.Error("%s: transaction error: %v", op, err)
		return fmt.Errorf("%w: %s - transaction: %v", ErrInternal, op, err)
	}
}

// publish отправляет уведомления после коммита
func (s *Service) publish(ctx context.Context, eff *effects) {
	if eff == nil {
		return
	}

	s.bookings.NotifyStatusChanged(ctx, eff.booking, eff.fromStatus)

	if eff.template == "" {
		return
	}

	s.metrics.PaymentObserved(string(eff.payment.Method), string(eff.payment.Status))

	payload := map[string]interface{}{
		"bookingId": eff.booking.ID,
		"paymentId": eff.payment.ID,
		"amount":    eff.payment.TotalAmount.StringFixed(2),
		"currency":  eff.payment.Currency,
	}
	if eff.payment.FailureReason != nil {
		payload["reason"] = *eff.payment.FailureReason
	}

	if err := s.notifier.Notify(ctx, eff.payment.UserID, eff.template, payload); err != nil {
		s.logger.Warn("publish: template=%s for user=%d failed: %v", eff.template, eff.payment.UserID, err)
	}
}
