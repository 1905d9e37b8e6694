package quotations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	bookingRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/booking"
	quotationRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/quotation"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/quotations/models"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/ptr"
)

// expireBatchSize сколько просроченных квотаций обрабатывается за один проход
const expireBatchSize = 100

var expiredNote = "quotation expired"

// Config бизнес-параметры квотаций
type Config struct {
	VATRate            decimal.Decimal
	DefaultExpiryHours int
}

// Service квотации техников на дополнительные работы
type Service struct {
	bookingRepo   BookingRepository
	quotationRepo QuotationRepository
	bookings      BookingTransitioner
	audit         AuditRecorder
	notifier      Notifier
	txManager     TransactionManager
	timeProvider  TimeProvider
	config        Config
	logger        Logger
}

// NewService создает новый экземпляр сервиса квотаций
func NewService(
	bookingRepo BookingRepository,
	quotationRepo QuotationRepository,
	bookings BookingTransitioner,
	audit AuditRecorder,
	notifier Notifier,
	txManager TransactionManager,
	config Config,
	logger Logger,
) *Service {
	if config.DefaultExpiryHours <= 0 {
		config.DefaultExpiryHours = domain.DefaultQuotationExpiryHours
	}

	return &Service{
		bookingRepo:   bookingRepo,
		quotationRepo: quotationRepo,
		bookings:      bookings,
		audit:         audit,
		notifier:      notifier,
		txManager:     txManager,
		timeProvider:  RealTimeProvider{},
		config:        config,
		logger:        logger,
	}
}

// SetTimeProvider подменяет источник времени
func (s *Service) SetTimeProvider(tp TimeProvider) {
	s.timeProvider = tp
}

// Create создает pending квотацию назначенного техника и переводит бронирование в quotation_pending
func (s *Service) Create(ctx context.Context, bookingID int64, req *models.CreateQuotationRequest) (*models.QuotationResponse, error) {
	s.logger.Info("Create: quotation for booking id=%d by technician=%d, items=%d",
		bookingID, req.TechnicianID, len(req.LineItems))

	if err := validateLineItems(req.LineItems); err != nil {
		s.logger.Warn("Create: invalid line items for booking id=%d: %v", bookingID, err)
		return nil, err
	}

	expiryHours := req.ExpiryHours
	if expiryHours < 0 || expiryHours > domain.MaxQuotationExpiryHours {
		return nil, fmt.Errorf("%w: expiry hours must be between 0 and %d", ErrInvalidInput, domain.MaxQuotationExpiryHours)
	}
	if expiryHours == 0 {
		expiryHours = s.config.DefaultExpiryHours
	}

	var created *domain.Quotation
	var booking *domain.Booking
	var from domain.BookingStatus

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.lockBooking(ctx, "Create", bookingID)
		if err != nil {
			return err
		}

		if !booking.IsAssignedTo(req.TechnicianID) {
			s.logger.Warn("Create: technician=%d is not assigned to booking id=%d", req.TechnicianID, bookingID)
			return ErrAccessDenied
		}

		if _, err := s.quotationRepo.GetPendingByBooking(ctx, bookingID); err == nil {
			return ErrQuotationAlreadyPending
		} else if !errors.Is(err, quotationRepo.ErrQuotationNotFound) {
			return fmt.Errorf("%w: Create - check pending: %v", ErrInternal, err)
		}

		if !domain.CanTransition(booking.Status, domain.StatusQuotationPending) {
			s.logger.Warn("Create: booking id=%d in status=%s can not accept a quotation", bookingID, booking.Status)
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, domain.StatusQuotationPending)
		}

		items, additionalCost := domain.PriceLineItems(models.ToDomainLineItems(req.LineItems))
		now := s.timeProvider.Now()

		created, err = s.quotationRepo.Create(ctx, &domain.Quotation{
			BookingID:      bookingID,
			TechnicianID:   req.TechnicianID,
			AdditionalCost: additionalCost,
			VATAmount:      domain.ComputeVAT(additionalCost, s.config.VATRate),
			LineItems:      items,
			Status:         domain.QuotationPending,
			ExpiresAt:      now.Add(time.Duration(expiryHours) * time.Hour),
		})
		if err != nil {
			if errors.Is(err, quotationRepo.ErrPendingQuotationExists) {
				return ErrQuotationAlreadyPending
			}
			return fmt.Errorf("%w: Create - insert quotation: %v", ErrInternal, err)
		}

		from = booking.Status
		if err := s.bookings.TransitionInTx(ctx, booking, domain.StatusQuotationPending, req.TechnicianID, nil); err != nil {
			return fmt.Errorf("%w: Create - transition booking: %v", ErrInternal, err)
		}

		if err := s.audit.Record(ctx, req.TechnicianID, domain.ActionQuotationCreated, domain.ResourceQuotation, created.ID,
			nil, models.FromDomainQuotation(created)); err != nil {
			return fmt.Errorf("%w: Create - audit: %v", ErrInternal, err)
		}

		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("Create", err)
	}

	s.logger.Info("Create: quotation id=%d for booking id=%d, additional=%s vat=%s",
		created.ID, bookingID, created.AdditionalCost.String(), created.VATAmount.String())

	s.bookings.NotifyStatusChanged(ctx, booking, from)
	s.notify(ctx, booking.CustomerID, domain.TemplateQuotationCreated, map[string]interface{}{
		"bookingId":      bookingID,
		"quotationId":    created.ID,
		"additionalCost": created.AdditionalCost.StringFixed(2),
		"vatAmount":      created.VATAmount.StringFixed(2),
		"expiresAt":      created.ExpiresAt,
	})

	return models.FromDomainQuotation(created), nil
}

// Approve применяет квотацию к бронированию: запчасти и НДС добавляются к суммам, итог пересчитывается.
// Статус бронирования не меняется; доплату проводит сервис платежей.
// Просроченная квотация помечается expired, бронирование возвращается в in_progress.
func (s *Service) Approve(ctx context.Context, quotationID int64, req *models.DecisionRequest) (*models.QuotationResponse, error) {
	s.logger.Info("Approve: quotation id=%d by user=%d", quotationID, req.UserID)

	var q *domain.Quotation
	var booking *domain.Booking
	var from domain.BookingStatus
	expired := false

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		q, booking, err = s.lockForDecision(ctx, "Approve", quotationID, req.UserID)
		if err != nil {
			return err
		}

		now := s.timeProvider.Now()
		from = booking.Status

		if q.IsExpired(now) {
			expired = true
			return s.expireInTx(ctx, q, booking, now)
		}

		oldTotals := totalsOf(booking)
		increment := q.AdditionalCost.Add(q.VATAmount)

		booking.SparePartsCost = booking.SparePartsCost.Add(q.AdditionalCost)
		booking.VATAmount = booking.VATAmount.Add(q.VATAmount)
		booking.RecomputeTotal()
		if increment.IsPositive() {
			booking.PaymentStatus = domain.BookingPaymentPending
		}

		if err := s.bookingRepo.Update(ctx, booking); err != nil {
			return fmt.Errorf("%w: Approve - update booking: %v", ErrInternal, err)
		}

		q.Status = domain.QuotationApproved
		q.DecidedAt = &now
		q.DecidedBy = ptr.Ptr(req.UserID)
		if err := s.quotationRepo.UpdateStatus(ctx, q); err != nil {
			return s.mapUpdateError("Approve", err)
		}

		if err := s.audit.Record(ctx, req.UserID, domain.ActionQuotationApproved, domain.ResourceQuotation, q.ID,
			map[string]interface{}{"status": domain.QuotationPending, "booking": oldTotals},
			map[string]interface{}{"status": q.Status, "booking": totalsOf(booking)},
		); err != nil {
			return fmt.Errorf("%w: Approve - audit: %v", ErrInternal, err)
		}

		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("Approve", err)
	}

	if expired {
		s.logger.Warn("Approve: quotation id=%d expired at %s", quotationID, q.ExpiresAt.Format(time.RFC3339))
		s.bookings.NotifyStatusChanged(ctx, booking, from)
		return nil, ErrQuotationExpired
	}

	s.logger.Info("Approve: quotation id=%d approved, booking id=%d total=%s",
		quotationID, booking.ID, booking.TotalAmount.String())

	s.notify(ctx, q.TechnicianID, domain.TemplateQuotationApproved, map[string]interface{}{
		"bookingId":   booking.ID,
		"quotationId": q.ID,
		"totalAmount": booking.TotalAmount.StringFixed(2),
	})

	return models.FromDomainQuotation(q), nil
}

// Reject отклоняет квотацию и возвращает бронирование в in_progress
func (s *Service) Reject(ctx context.Context, quotationID int64, req *models.DecisionRequest) (*models.QuotationResponse, error) {
	s.logger.Info("Reject: quotation id=%d by user=%d", quotationID, req.UserID)

	var q *domain.Quotation
	var booking *domain.Booking
	var from domain.BookingStatus
	expired := false

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		q, booking, err = s.lockForDecision(ctx, "Reject", quotationID, req.UserID)
		if err != nil {
			return err
		}

		now := s.timeProvider.Now()
		from = booking.Status

		if q.IsExpired(now) {
			expired = true
			return s.expireInTx(ctx, q, booking, now)
		}

		q.Status = domain.QuotationRejected
		q.DecidedAt = &now
		q.DecidedBy = ptr.Ptr(req.UserID)
		if err := s.quotationRepo.UpdateStatus(ctx, q); err != nil {
			return s.mapUpdateError("Reject", err)
		}

		if booking.Status == domain.StatusQuotationPending {
			if err := s.bookings.TransitionInTx(ctx, booking, domain.StatusInProgress, req.UserID, nil); err != nil {
				return fmt.Errorf("%w: Reject - revert booking: %v", ErrInternal, err)
			}
		}

		if err := s.audit.Record(ctx, req.UserID, domain.ActionQuotationRejected, domain.ResourceQuotation, q.ID,
			map[string]interface{}{"status": domain.QuotationPending},
			map[string]interface{}{"status": q.Status},
		); err != nil {
			return fmt.Errorf("%w: Reject - audit: %v", ErrInternal, err)
		}

		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("Reject", err)
	}

	s.bookings.NotifyStatusChanged(ctx, booking, from)

	if expired {
		s.logger.Warn("Reject: quotation id=%d expired at %s", quotationID, q.ExpiresAt.Format(time.RFC3339))
		return nil, ErrQuotationExpired
	}

	s.logger.Info("Reject: quotation id=%d rejected, booking id=%d status=%s", quotationID, booking.ID, booking.Status)

	s.notify(ctx, q.TechnicianID, domain.TemplateQuotationRejected, map[string]interface{}{
		"bookingId":   booking.ID,
		"quotationId": q.ID,
	})

	return models.FromDomainQuotation(q), nil
}

// ExpireStale помечает просроченные pending квотации как expired и возвращает бронирования в in_progress.
// Каждая квотация обрабатывается в своей транзакции. Возвращает число просроченных квотаций.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.timeProvider.Now()

	stale, err := s.quotationRepo.ListExpiredPending(ctx, now, expireBatchSize)
	if err != nil {
		s.logger.Error("ExpireStale: repository error: %v", err)
		return 0, fmt.Errorf("%w: ExpireStale - list expired: %v", ErrInternal, err)
	}

	expiredCount := 0
	for _, candidate := range stale {
		var booking *domain.Booking
		var from domain.BookingStatus
		done := false

		err := s.txManager.Do(ctx, func(ctx context.Context) error {
			var err error
			booking, err = s.lockBooking(ctx, "ExpireStale", candidate.BookingID)
			if err != nil {
				return err
			}

			q, err := s.quotationRepo.GetByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return fmt.Errorf("%w: ExpireStale - lock quotation: %v", ErrInternal, err)
			}

			// квотацию могли успеть одобрить или отклонить
			if !q.IsPending() {
				return nil
			}

			from = booking.Status
			done = true
			return s.expireInTx(ctx, q, booking, now)
		})
		if err != nil {
			s.logger.Error("ExpireStale: quotation id=%d: %v", candidate.ID, err)
			continue
		}

		if done {
			expiredCount++
			s.bookings.NotifyStatusChanged(ctx, booking, from)
		}
	}

	if expiredCount > 0 {
		s.logger.Info("ExpireStale: expired %d quotations", expiredCount)
	}

	return expiredCount, nil
}

// ListByBooking возвращает квотации бронирования.
// Доступно клиенту, назначенному технику и администратору.
func (s *Service) ListByBooking(ctx context.Context, bookingID int64, req *models.DecisionRequest) (*models.QuotationListResponse, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		s.logger.Error("ListByBooking: repository error for booking id=%d: %v", bookingID, err)
		return nil, fmt.Errorf("%w: ListByBooking - get booking: %v", ErrInternal, err)
	}

	if !booking.CanBeViewedBy(req.UserID, req.Role) {
		s.logger.Warn("ListByBooking: access denied for user=%d to booking id=%d", req.UserID, bookingID)
		return nil, ErrAccessDenied
	}

	quotations, err := s.quotationRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error("ListByBooking: repository error for booking id=%d: %v", bookingID, err)
		return nil, fmt.Errorf("%w: ListByBooking - list quotations: %v", ErrInternal, err)
	}

	return models.FromDomainQuotationList(quotations), nil
}

// Вспомогательные методы

// lockForDecision блокирует бронирование, затем квотацию, и проверяет права клиента
func (s *Service) lockForDecision(ctx context.Context, op string, quotationID, customerID int64) (*domain.Quotation, *domain.Booking, error) {
	q, err := s.quotationRepo.GetByID(ctx, quotationID)
	if err != nil {
		if errors.Is(err, quotationRepo.ErrQuotationNotFound) {
			s.logger.Warn("%s: quotation id=%d not found", op, quotationID)
			return nil, nil, ErrQuotationNotFound
		}
		return nil, nil, fmt.Errorf("%w: %s - get quotation: %v", ErrInternal, op, err)
	}

	booking, err := s.lockBooking(ctx, op, q.BookingID)
	if err != nil {
		return nil, nil, err
	}

	if booking.CustomerID != customerID {
		s.logger.Warn("%s: user=%d does not own booking id=%d", op, customerID, booking.ID)
		return nil, nil, ErrAccessDenied
	}

	q, err = s.quotationRepo.GetByIDForUpdate(ctx, quotationID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s - lock quotation: %v", ErrInternal, op, err)
	}

	if !q.IsPending() {
		s.logger.Warn("%s: quotation id=%d already %s", op, quotationID, q.Status)
		return nil, nil, fmt.Errorf("%w: quotation is %s", ErrAlreadyProcessed, q.Status)
	}

	if booking.Status != domain.StatusQuotationPending {
		s.logger.Warn("%s: booking id=%d is %s, quotation id=%d can not be decided", op, booking.ID, booking.Status, quotationID)
		return nil, nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, booking.Status)
	}

	return q, booking, nil
}

// expireInTx помечает квотацию expired и возвращает бронирование в in_progress
func (s *Service) expireInTx(ctx context.Context, q *domain.Quotation, booking *domain.Booking, now time.Time) error {
	q.Status = domain.QuotationExpired
	q.DecidedAt = &now
	q.DecidedBy = nil
	if err := s.quotationRepo.UpdateStatus(ctx, q); err != nil {
		return s.mapUpdateError("expireInTx", err)
	}

	if booking.Status == domain.StatusQuotationPending {
		if err := s.bookings.TransitionInTx(ctx, booking, domain.StatusInProgress, domain.SystemActorID, &expiredNote); err != nil {
			return fmt.Errorf("%w: expireInTx - revert booking: %v", ErrInternal, err)
		}
	}

	if err := s.audit.Record(ctx, domain.SystemActorID, domain.ActionQuotationExpired, domain.ResourceQuotation, q.ID,
		map[string]interface{}{"status": domain.QuotationPending},
		map[string]interface{}{"status": q.Status, "expiresAt": q.ExpiresAt},
	); err != nil {
		return fmt.Errorf("%w: expireInTx - audit: %v", ErrInternal, err)
	}

	return nil
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

func (s *Service) mapUpdateError(op string, err error) error {
	if errors.Is(err, quotationRepo.ErrQuotationNotPending) {
		return ErrAlreadyProcessed
	}
	return fmt.Errorf("%w: %s - update quotation: %v", ErrInternal, op, err)
}

func (s *Service) wrapTxError(op string, err error) error {
	switch {
	case errors.Is(err, ErrQuotationNotFound),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrQuotationAlreadyPending),
		errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, ErrInternal):
		s.logger.Error("%s: %v", op, err)
		return err
	default:
		s.logger.Error("%s: transaction error: %v", op, err)
		return fmt.Errorf("%w: %s - transaction: %v", ErrInternal, op, err)
	}
}

func (s *Service) notify(ctx context.Context, userID int64, templateKey string, payload map[string]interface{}) {
	if err := s.notifier.Notify(ctx, userID, templateKey, payload); err != nil {
		s.logger.Warn("notify: template=%s for user=%d failed: %v", templateKey, userID, err)
	}
}

func validateLineItems(items []models.LineItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidInput)
	}
	if len(items) > domain.MaxQuotationLineItems {
		return fmt.Errorf("%w: too many line items", ErrInvalidInput)
	}

	for i, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: line item %d: quantity must be positive", ErrInvalidInput, i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line item %d: unit price must not be negative", ErrInvalidInput, i)
		}
	}

	return nil
}

func totalsOf(b *domain.Booking) map[string]interface{} {
	return map[string]interface{}{
		"vatAmount":      b.VATAmount,
		"sparePartsCost": b.SparePartsCost,
		"totalAmount":    b.TotalAmount,
		"paymentStatus":  b.PaymentStatus,
	}
}
