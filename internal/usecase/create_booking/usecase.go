package create_booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	catalogClient "github.com/m04kA/SMC-HomeServiceBooking/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/bookings/models"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/ptr"
)

// UseCase use case для создания бронирования
type UseCase struct {
	bookingRepo   BookingRepository
	statusLogRepo StatusLogRepository
	audit         AuditRecorder
	catalog       CatalogClient
	txManager     TransactionManager
	timeProvider  TimeProvider
	vatRate       decimal.Decimal
	logger        Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	bookingRepo BookingRepository,
	statusLogRepo StatusLogRepository,
	audit AuditRecorder,
	catalog CatalogClient,
	txManager TransactionManager,
	vatRate decimal.Decimal,
	logger Logger,
) *UseCase {
	return &UseCase{
		bookingRepo:   bookingRepo,
		statusLogRepo: statusLogRepo,
		audit:         audit,
		catalog:       catalog,
		txManager:     txManager,
		timeProvider:  &RealTimeProvider{},
		vatRate:       vatRate,
		logger:        logger,
	}
}

// SetTimeProvider подменяет источник времени
func (uc *UseCase) SetTimeProvider(tp TimeProvider) {
	uc.timeProvider = tp
}

// Execute создает бронирование в статусе pending.
// Стоимость берется из каталога: total = cost - discount + VAT(cost - discount).
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*models.BookingResponse, error) {
	uc.logger.Info("CreateBooking: customer=%d, service=%d, date=%s, time=%s",
		req.CustomerID, req.ServiceID, req.Date.Format(domain.DateFormat), req.StartTime)

	// 1. Валидация входных данных
	if err := validateRequest(req); err != nil {
		uc.logger.Warn("CreateBooking: validation failed: %v", err)
		return nil, err
	}

	// 2. Дата и время визита
	if err := validateSchedule(req.Date, req.StartTime, uc.timeProvider.Now()); err != nil {
		uc.logger.Warn("CreateBooking: schedule validation failed: %v", err)
		return nil, err
	}

	// 3. Получаем услугу и цену
	service, err := uc.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrServiceNotFound) {
			uc.logger.Warn("CreateBooking: service id=%d not found", req.ServiceID)
			return nil, ErrServiceNotFound
		}
		uc.logger.Error("CreateBooking: failed to get service id=%d: %v", req.ServiceID, err)
		return nil, fmt.Errorf("%w: failed to get service: %v", ErrInternal, err)
	}

	if !service.IsActive {
		uc.logger.Warn("CreateBooking: service id=%d is not active", req.ServiceID)
		return nil, ErrServiceUnavailable
	}

	booking, err := uc.price(service)
	if err != nil {
		uc.logger.Error("CreateBooking: %v", err)
		return nil, err
	}

	booking.CustomerID = req.CustomerID
	booking.ServiceID = req.ServiceID
	booking.ScheduledDate = req.Date
	booking.StartTime = req.StartTime
	booking.Notes = req.Notes
	booking.Status = domain.StatusPending
	booking.PaymentStatus = domain.BookingPaymentPending

	// 4. Бронирование, запись журнала и аудит в одной транзакции
	var result *domain.Booking

	err = uc.txManager.Do(ctx, func(txCtx context.Context) error {
		created, err := uc.bookingRepo.Create(txCtx, booking)
		if err != nil {
			return fmt.Errorf("%w: failed to create booking: %v", ErrInternal, err)
		}

		if err := uc.statusLogRepo.Create(txCtx, &domain.OrderStatusLog{
			BookingID:  created.ID,
			FromStatus: nil,
			ToStatus:   created.Status,
			ChangedBy:  req.CustomerID,
			Notes:      ptr.Ptr("booking created"),
		}); err != nil {
			return fmt.Errorf("%w: failed to write status log: %v", ErrInternal, err)
		}

		if err := uc.audit.Record(txCtx, req.CustomerID, domain.ActionBookingCreated, domain.ResourceBooking, created.ID,
			nil, models.FromDomainBooking(created)); err != nil {
			return fmt.Errorf("%w: failed to write audit: %v", ErrInternal, err)
		}

		result = created
		return nil
	})

	if err != nil {
		uc.logger.Error("CreateBooking: %v", err)
		if errors.Is(err, ErrInternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: transaction: %v", ErrInternal, err)
	}

	uc.logger.Info("CreateBooking: successfully created booking id=%d, total=%s", result.ID, result.TotalAmount.String())

	return models.FromDomainBooking(result), nil
}

// price считает стоимость бронирования по данным каталога
func (uc *UseCase) price(service *catalogClient.Service) (*domain.Booking, error) {
	cost := domain.RoundMoney(service.Price)
	discount := domain.RoundMoney(service.Discount)

	if cost.IsNegative() || discount.IsNegative() {
		return nil, fmt.Errorf("%w: catalog returned negative price for service id=%d", ErrInternal, service.ID)
	}
	if discount.GreaterThan(cost) {
		discount = cost
	}

	b := &domain.Booking{
		ServiceCost:    cost,
		DiscountAmount: discount,
		VATAmount:      domain.ComputeVAT(cost.Sub(discount), uc.vatRate),
		SparePartsCost: decimal.Zero,
	}
	b.RecomputeTotal()

	return b, nil
}
