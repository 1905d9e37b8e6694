package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	bookingRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/booking"
	quotationRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/quotation"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/userservice"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings/models"
)

// Service машина состояний бронирования
type Service struct {
	bookingRepo   BookingRepository
	statusLogRepo StatusLogRepository
	quotationRepo QuotationRepository
	audit         AuditRecorder
	notifier      Notifier
	users         UserDirectory
	txManager     TransactionManager
	timeProvider  TimeProvider
	logger        Logger
}

// NewService создает новый экземпляр сервиса бронирований
func NewService(
	bookingRepo BookingRepository,
	statusLogRepo StatusLogRepository,
	quotationRepo QuotationRepository,
	audit AuditRecorder,
	notifier Notifier,
	txManager TransactionManager,
	logger Logger,
) *Service {
	return &Service{
		bookingRepo:   bookingRepo,
		statusLogRepo: statusLogRepo,
		quotationRepo: quotationRepo,
		audit:         audit,
		notifier:      notifier,
		txManager:     txManager,
		timeProvider:  RealTimeProvider{},
		logger:        logger,
	}
}

// SetTimeProvider подменяет источник времени
func (s *Service) SetTimeProvider(tp TimeProvider) {
	s.timeProvider = tp
}

// SetUserDirectory включает проверку техника в UserService при назначении
func (s *Service) SetUserDirectory(users UserDirectory) {
	s.users = users
}

// GetByID получает бронирование по ID.
// Доступно клиенту, назначенному технику и администратору.
func (s *Service) GetByID(ctx context.Context, id int64, requester models.Requester) (*models.BookingResponse, error) {
	s.logger.Info("GetByID: fetching booking id=%d for user=%d", id, requester.UserID)

	booking, err := s.getBooking(ctx, "GetByID", id)
	if err != nil {
		return nil, err
	}

	if !booking.CanBeViewedBy(requester.UserID, requester.Role) {
		s.logger.Warn("GetByID: access denied for user=%d to booking id=%d", requester.UserID, id)
		return nil, ErrAccessDenied
	}

	return models.FromDomainBooking(booking), nil
}

// GetCustomerBookings получает бронирования клиента.
// Клиент видит только свои бронирования, администратор любые.
func (s *Service) GetCustomerBookings(ctx context.Context, req *models.GetCustomerBookingsRequest) (*models.BookingListResponse, error) {
	s.logger.Info("GetCustomerBookings: fetching bookings for customer=%d, status=%v", req.CustomerID, req.Status)

	if req.UserID != req.CustomerID && req.Role != domain.RoleAdmin {
		s.logger.Warn("GetCustomerBookings: access denied for user=%d to customer=%d", req.UserID, req.CustomerID)
		return nil, ErrAccessDenied
	}

	filter := domain.BookingsFilter{CustomerID: &req.CustomerID}
	if err := applyStatusFilter(&filter, req.Status); err != nil {
		s.logger.Warn("GetCustomerBookings: invalid status=%s", *req.Status)
		return nil, err
	}

	bookings, err := s.bookingRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("GetCustomerBookings: repository error for customer=%d: %v", req.CustomerID, err)
		return nil, fmt.Errorf("%w: GetCustomerBookings - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("GetCustomerBookings: fetched %d bookings for customer=%d", len(bookings), req.CustomerID)
	return models.FromDomainBookingList(bookings), nil
}

// GetTechnicianBookings получает бронирования, назначенные технику
func (s *Service) GetTechnicianBookings(ctx context.Context, req *models.GetTechnicianBookingsRequest) (*models.BookingListResponse, error) {
	s.logger.Info("GetTechnicianBookings: fetching bookings for technician=%d, status=%v", req.TechnicianID, req.Status)

	if req.UserID != req.TechnicianID && req.Role != domain.RoleAdmin {
		s.logger.Warn("GetTechnicianBookings: access denied for user=%d to technician=%d", req.UserID, req.TechnicianID)
		return nil, ErrAccessDenied
	}

	filter := domain.BookingsFilter{TechnicianID: &req.TechnicianID}
	if err := applyStatusFilter(&filter, req.Status); err != nil {
		s.logger.Warn("GetTechnicianBookings: invalid status=%s", *req.Status)
		return nil, err
	}

	bookings, err := s.bookingRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("GetTechnicianBookings: repository error for technician=%d: %v", req.TechnicianID, err)
		return nil, fmt.Errorf("%w: GetTechnicianBookings - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("GetTechnicianBookings: fetched %d bookings for technician=%d", len(bookings), req.TechnicianID)
	return models.FromDomainBookingList(bookings), nil
}

// GetStatusHistory возвращает журнал смены статусов бронирования
func (s *Service) GetStatusHistory(ctx context.Context, bookingID int64, requester models.Requester) (*models.StatusHistoryResponse, error) {
	booking, err := s.getBooking(ctx, "GetStatusHistory", bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.CanBeViewedBy(requester.UserID, requester.Role) {
		s.logger.Warn("GetStatusHistory: access denied for user=%d to booking id=%d", requester.UserID, bookingID)
		return nil, ErrAccessDenied
	}

	entries, err := s.statusLogRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Error("GetStatusHistory: repository error for booking id=%d: %v", bookingID, err)
		return nil, fmt.Errorf("%w: GetStatusHistory - repository error: %v", ErrInternal, err)
	}

	return models.FromDomainStatusHistory(bookingID, entries), nil
}

// Transition меняет статус бронирования по таблице переходов.
// Доступно назначенному технику и администратору. В quotation_pending бронирование
// переводится только созданием квотации, в technician_assigned только назначением.
func (s *Service) Transition(ctx context.Context, bookingID int64, req *models.UpdateStatusRequest) (*models.BookingResponse, error) {
	s.logger.Info("Transition: booking id=%d to status=%s by user=%d", bookingID, req.Status, req.UserID)

	target, err := models.ToDomainBookingStatus(req.Status)
	if err != nil {
		s.logger.Warn("Transition: invalid status=%s for booking id=%d", req.Status, bookingID)
		return nil, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, req.Status)
	}

	if target == domain.StatusQuotationPending || target == domain.StatusTechnicianAssigned {
		s.logger.Warn("Transition: status=%s can not be set directly for booking id=%d", target, bookingID)
		return nil, fmt.Errorf("%w: status %s is set by its own operation", ErrInvalidTransition, target)
	}

	var from domain.BookingStatus
	var updated *domain.Booking

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		booking, err := s.lockBooking(ctx, "Transition", bookingID)
		if err != nil {
			return err
		}

		if req.Role != domain.RoleAdmin && !booking.IsAssignedTo(req.UserID) {
			s.logger.Warn("Transition: access denied for user=%d to booking id=%d", req.UserID, bookingID)
			return ErrAccessDenied
		}

		from = booking.Status
		if err := s.TransitionInTx(ctx, booking, target, req.UserID, req.Notes); err != nil {
			return err
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("Transition", bookingID, err)
	}

	s.logger.Info("Transition: booking id=%d moved %s -> %s", bookingID, from, target)
	s.NotifyStatusChanged(ctx, updated, from)

	return models.FromDomainBooking(updated), nil
}

// Cancel отменяет бронирование с указанием причины.
// Доступно клиенту и администратору; завершенное или уже отмененное бронирование отменить нельзя.
func (s *Service) Cancel(ctx context.Context, bookingID int64, req *models.CancelBookingRequest) (*models.BookingResponse, error) {
	s.logger.Info("Cancel: cancelling booking id=%d by user=%d", bookingID, req.UserID)

	reason := strings.TrimSpace(req.CancellationReason)
	if len(reason) > domain.MaxCancellationReasonLength {
		return nil, fmt.Errorf("%w: cancellation reason is too long", ErrInvalidInput)
	}

	var from domain.BookingStatus
	var updated *domain.Booking

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		booking, err := s.lockBooking(ctx, "Cancel", bookingID)
		if err != nil {
			return err
		}

		if req.Role != domain.RoleAdmin && booking.CustomerID != req.UserID {
			s.logger.Warn("Cancel: access denied for user=%d to cancel booking id=%d", req.UserID, bookingID)
			return ErrAccessDenied
		}

		from = booking.Status

		var notes *string
		if reason != "" {
			notes = &reason
			booking.CancellationReason = &reason
		}

		if err := s.TransitionInTx(ctx, booking, domain.StatusCancelled, req.UserID, notes); err != nil {
			return err
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("Cancel", bookingID, err)
	}

	s.logger.Info("Cancel: booking id=%d cancelled from status=%s", bookingID, from)
	s.NotifyStatusChanged(ctx, updated, from)

	return models.FromDomainBooking(updated), nil
}

// AssignTechnician назначает техника и переводит бронирование в technician_assigned.
// Повторное назначение разрешено до начала работ. Доступно только администратору.
func (s *Service) AssignTechnician(ctx context.Context, bookingID int64, req *models.AssignTechnicianRequest) (*models.BookingResponse, error) {
	s.logger.Info("AssignTechnician: booking id=%d technician=%d by user=%d", bookingID, req.TechnicianID, req.UserID)

	if req.Role != domain.RoleAdmin {
		s.logger.Warn("AssignTechnician: access denied for user=%d role=%s", req.UserID, req.Role)
		return nil, ErrAccessDenied
	}
	if req.TechnicianID <= 0 {
		return nil, fmt.Errorf("%w: technician id must be positive", ErrInvalidInput)
	}
	if err := s.checkTechnician(ctx, req.TechnicianID); err != nil {
		return nil, err
	}

	var from domain.BookingStatus
	var updated *domain.Booking

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		booking, err := s.lockBooking(ctx, "AssignTechnician", bookingID)
		if err != nil {
			return err
		}

		if !domain.CanAssignTechnician(booking.Status) {
			s.logger.Warn("AssignTechnician: booking id=%d in status=%s", bookingID, booking.Status)
			return fmt.Errorf("%w: can not assign technician in status %s", ErrInvalidTransition, booking.Status)
		}

		from = booking.Status
		oldTechnician := booking.TechnicianID
		now := s.timeProvider.Now()

		technicianID := req.TechnicianID
		booking.TechnicianID = &technicianID
		booking.AssignedAt = &now
		booking.Status = domain.StatusTechnicianAssigned

		if err := s.bookingRepo.Update(ctx, booking); err != nil {
			return fmt.Errorf("%w: AssignTechnician - update booking: %v", ErrInternal, err)
		}

		if err := s.appendStatusLog(ctx, booking.ID, from, booking.Status, req.UserID, nil); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, req.UserID, domain.ActionTechnicianAssigned, domain.ResourceBooking, booking.ID,
			map[string]interface{}{"status": from, "technicianId": oldTechnician},
			map[string]interface{}{"status": booking.Status, "technicianId": technicianID},
		); err != nil {
			return fmt.Errorf("%w: AssignTechnician - audit: %v", ErrInternal, err)
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("AssignTechnician", bookingID, err)
	}

	s.logger.Info("AssignTechnician: booking id=%d assigned to technician=%d", bookingID, req.TechnicianID)
	s.NotifyStatusChanged(ctx, updated, from)
	s.notify(ctx, req.TechnicianID, domain.TemplateBookingStatusChanged, map[string]interface{}{
		"bookingId": updated.ID,
		"status":    string(updated.Status),
	})

	return models.FromDomainBooking(updated), nil
}

// TransitionInTx выполняет переход для уже заблокированного бронирования внутри транзакции вызывающего.
// Обновляет статус и временные метки, пишет журнал статусов и аудит.
// Уведомление отправляет вызывающий после коммита (NotifyStatusChanged).
func (s *Service) TransitionInTx(
	ctx context.Context,
	booking *domain.Booking,
	target domain.BookingStatus,
	actorID int64,
	notes *string,
) error {
	from := booking.Status
	if !domain.CanTransition(from, target) {
		s.logger.Warn("TransitionInTx: booking id=%d can not move %s -> %s", booking.ID, from, target)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}

	now := s.timeProvider.Now()
	booking.Status = target

	switch target {
	case domain.StatusInProgress:
		if booking.StartedAt == nil {
			booking.StartedAt = &now
		}
	case domain.StatusCompleted:
		booking.CompletedAt = &now
	case domain.StatusCancelled:
		booking.CancelledAt = &now
	}

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return fmt.Errorf("%w: TransitionInTx - update booking: %v", ErrInternal, err)
	}

	if err := s.appendStatusLog(ctx, booking.ID, from, target, actorID, notes); err != nil {
		return err
	}

	if from == domain.StatusQuotationPending {
		if err := s.closePendingQuotation(ctx, booking, actorID, now); err != nil {
			return err
		}
	}

	action := domain.ActionBookingStatusChanged
	if target == domain.StatusCancelled {
		action = domain.ActionBookingCancelled
	}

	newValues := map[string]interface{}{"status": target}
	if notes != nil {
		newValues["notes"] = *notes
	}

	if err := s.audit.Record(ctx, actorID, action, domain.ResourceBooking, booking.ID,
		map[string]interface{}{"status": from}, newValues); err != nil {
		return fmt.Errorf("%w: TransitionInTx - audit: %v", ErrInternal, err)
	}

	return nil
}

// NotifyStatusChanged уведомляет клиента о смене статуса. Ошибки только логируются.
func (s *Service) NotifyStatusChanged(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) {
	if booking == nil || booking.Status == from {
		return
	}

	s.notify(ctx, booking.CustomerID, domain.TemplateBookingStatusChanged, map[string]interface{}{
		"bookingId":  booking.ID,
		"fromStatus": string(from),
		"toStatus":   string(booking.Status),
	})
}

// Вспомогательные методы

// checkTechnician проверяет, что пользователь существует и является активным техником.
// При недоступности UserService проверка пропускается.
func (s *Service) checkTechnician(ctx context.Context, technicianID int64) error {
	if s.users == nil {
		return nil
	}

	user, err := s.users.GetUserWithGracefulDegradation(ctx, technicianID)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrUserNotFound):
			s.logger.Warn("AssignTechnician: technician id=%d not found", technicianID)
			return fmt.Errorf("%w: technician %d not found", ErrInvalidInput, technicianID)
		case errors.Is(err, userservice.ErrServiceDegraded):
			s.logger.Warn("AssignTechnician: skipping technician check for id=%d: %v", technicianID, err)
			return nil
		default:
			return fmt.Errorf("%w: AssignTechnician - user lookup: %v", ErrInternal, err)
		}
	}

	if domain.Role(user.Role) != domain.RoleTechnician || !user.IsActive {
		s.logger.Warn("AssignTechnician: user id=%d role=%s active=%t can not be assigned",
			technicianID, user.Role, user.IsActive)
		return fmt.Errorf("%w: user %d is not an active technician", ErrInvalidInput, technicianID)
	}

	return nil
}

// closePendingQuotation закрывает квотацию, оставшуюся pending после выхода бронирования из quotation_pending.
// Одобрение, отказ и истечение меняют статус квотации до перехода, поэтому здесь ее уже нет.
func (s *Service) closePendingQuotation(ctx context.Context, booking *domain.Booking, actorID int64, now time.Time) error {
	q, err := s.quotationRepo.GetPendingByBooking(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, quotationRepo.ErrQuotationNotFound) {
			return nil
		}
		return fmt.Errorf("%w: closePendingQuotation - get pending: %v", ErrInternal, err)
	}

	q.Status = domain.QuotationExpired
	q.DecidedAt = &now
	q.DecidedBy = nil
	if err := s.quotationRepo.UpdateStatus(ctx, q); err != nil {
		return fmt.Errorf("%w: closePendingQuotation - update quotation id=%d: %v", ErrInternal, q.ID, err)
	}

	s.logger.Info("closePendingQuotation: quotation id=%d closed, booking id=%d moved to %s", q.ID, booking.ID, booking.Status)

	if err := s.audit.Record(ctx, actorID, domain.ActionQuotationExpired, domain.ResourceQuotation, q.ID,
		map[string]interface{}{"status": domain.QuotationPending},
		map[string]interface{}{"status": q.Status, "bookingStatus": booking.Status},
	); err != nil {
		return fmt.Errorf("%w: closePendingQuotation - audit: %v", ErrInternal, err)
	}

	return nil
}

func (s *Service) appendStatusLog(
	ctx context.Context,
	bookingID int64,
	from, to domain.BookingStatus,
	actorID int64,
	notes *string,
) error {
	fromStatus := from
	entry := &domain.OrderStatusLog{
		BookingID:  bookingID,
		FromStatus: &fromStatus,
		ToStatus:   to,
		ChangedBy:  actorID,
		Notes:      notes,
	}

	if err := s.statusLogRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("%w: appendStatusLog - booking id=%d: %v", ErrInternal, bookingID, err)
	}

	return nil
}

func (s *Service) getBooking(ctx context.Context, op string, id int64) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			s.logger.Warn("%s: booking id=%d not found", op, id)
			return nil, ErrBookingNotFound
		}
		s.logger.Error("%s: repository error for booking id=%d: %v", op, id, err)
		return nil, fmt.Errorf("%w: %s - repository error: %v", ErrInternal, op, err)
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

// wrapTxError оставляет доменные ошибки как есть, остальное превращает в ErrInternal
func (s *Service) wrapTxError(op string, bookingID int64, err error) error {
	switch {
	case errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, ErrInternal):
		s.logger.Error("%s: booking id=%d: %v", op, bookingID, err)
		return err
	default:
		s.logger.Error("%s: transaction error for booking id=%d: %v", op, bookingID, err)
		return fmt.Errorf("%w: %s - transaction: %v", ErrInternal, op, err)
	}
}

func (s *Service) notify(ctx context.Context, userID int64, templateKey string, payload map[string]interface{}) {
	if err := s.notifier.Notify(ctx, userID, templateKey, payload); err != nil {
		s.logger.Warn("notify: template=%s for user=%d failed: %v", templateKey, userID, err)
	}
}

func applyStatusFilter(filter *domain.BookingsFilter, status *string) error {
	if status == nil {
		return nil
	}
	st, err := models.ToDomainBookingStatus(*status)
	if err != nil {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidInput, *status)
	}
	filter.Status = &st
	return nil
}
