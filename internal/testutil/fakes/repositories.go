package fakes

import (
	"context"
	"sort"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	bookingRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/booking"
	paymentRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/payment"
	quotationRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/quotation"
	walletRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/wallet"
	webhookRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/webhookevent"
)

// BookingRepository in-memory репозиторий бронирований
type BookingRepository struct{ S *Store }

func (r *BookingRepository) Create(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if err := r.S.failure("booking.Create"); err != nil {
		return nil, err
	}

	created := *b
	created.ID = r.S.nextID("bookings")
	created.CreatedAt = r.S.now()
	created.UpdatedAt = created.CreatedAt
	r.S.bookings[created.ID] = created

	return &created, nil
}

func (r *BookingRepository) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	b, ok := r.S.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	return &b, nil
}

func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) List(_ context.Context, filter domain.BookingsFilter) ([]*domain.Booking, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	out := make([]*domain.Booking, 0)
	for _, b := range r.S.bookings {
		if filter.CustomerID != nil && b.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.TechnicianID != nil && (b.TechnicianID == nil || *b.TechnicianID != *filter.TechnicianID) {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		b := b
		out = append(out, &b)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.After(out[j].ScheduledDate)
		}
		if out[i].StartTime != out[j].StartTime {
			return out[j].StartTime.IsBefore(out[i].StartTime)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func (r *BookingRepository) Update(_ context.Context, b *domain.Booking) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if err := r.S.failure("booking.Update"); err != nil {
		return err
	}
	if _, ok := r.S.bookings[b.ID]; !ok {
		return bookingRepo.ErrBookingNotFound
	}

	b.UpdatedAt = r.S.now()
	r.S.bookings[b.ID] = *b
	return nil
}

// StatusLogRepository in-memory журнал статусов
type StatusLogRepository struct{ S *Store }

func (r *StatusLogRepository) Create(_ context.Context, entry *domain.OrderStatusLog) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if err := r.S.failure("statuslog.Create"); err != nil {
		return err
	}

	entry.ID = r.S.nextID("status_logs")
	entry.CreatedAt = r.S.now()
	r.S.statusLogs = append(r.S.statusLogs, *entry)
	return nil
}

func (r *StatusLogRepository) ListByBooking(_ context.Context, bookingID int64) ([]*domain.OrderStatusLog, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	out := make([]*domain.OrderStatusLog, 0)
	for _, e := range r.S.statusLogs {
		if e.BookingID == bookingID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

// AuditRepository in-memory журнал аудита
type AuditRepository struct{ S *Store }

func (r *AuditRepository) Create(_ context.Context, entry *domain.AuditLog) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if err := r.S.failure("audit.Create"); err != nil {
		return err
	}

	entry.ID = r.S.nextID("audit_logs")
	entry.CreatedAt = r.S.now()
	r.S.auditLogs = append(r.S.auditLogs, *entry)
	return nil
}

// QuotationRepository in-memory репозиторий квотаций.
// Как и частичный уникальный индекс в БД, допускает одну pending квотацию на бронирование.
type QuotationRepository struct{ S *Store }

func (r *QuotationRepository) Create(_ context.Context, q *domain.Quotation) (*domain.Quotation, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if q.Status == domain.QuotationPending {
		for _, existing := range r.S.quotations {
			if existing.BookingID == q.BookingID && existing.Status == domain.QuotationPending {
				return nil, quotationRepo.ErrPendingQuotationExists
			}
		}
	}

	created := *q
	created.ID = r.S.nextID("quotations")
	created.CreatedAt = r.S.now()
	created.UpdatedAt = created.CreatedAt
	r.S.quotations[created.ID] = created

	return &created, nil
}

func (r *QuotationRepository) GetByID(_ context.Context, id int64) (*domain.Quotation, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	q, ok := r.S.quotations[id]
	if !ok {
		return nil, quotationRepo.ErrQuotationNotFound
	}
	return &q, nil
}

func (r *QuotationRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Quotation, error) {
	return r.GetByID(ctx, id)
}

func (r *QuotationRepository) GetPendingByBooking(_ context.Context, bookingID int64) (*domain.Quotation, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	for _, q := range r.S.quotations {
		if q.BookingID == bookingID && q.Status == domain.QuotationPending {
			return &q, nil
		}
	}
	return nil, quotationRepo.ErrQuotationNotFound
}

func (r *QuotationRepository) ListByBooking(_ context.Context, bookingID int64) ([]*domain.Quotation, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	out := make([]*domain.Quotation, 0)
	for _, q := range r.S.quotations {
		if q.BookingID == bookingID {
			q := q
			out = append(out, &q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

func (r *QuotationRepository) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*domain.Quotation, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	out := make([]*domain.Quotation, 0)
	for _, q := range r.S.quotations {
		if q.Status == domain.QuotationPending && !q.ExpiresAt.After(now) {
			q := q
			out = append(out, &q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *QuotationRepository) UpdateStatus(_ context.Context, q *domain.Quotation) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	stored, ok := r.S.quotations[q.ID]
	if !ok || stored.Status != domain.QuotationPending {
		return quotationRepo.ErrQuotationNotPending
	}

	stored.Status = q.Status
	stored.DecidedAt = q.DecidedAt
	stored.DecidedBy = q.DecidedBy
	stored.UpdatedAt = r.S.now()
	r.S.quotations[q.ID] = stored

	return nil
}

// WalletRepository in-memory репозиторий кошельков
type WalletRepository struct{ S *Store }

func (r *WalletRepository) EnsureExists(_ context.Context, userID int64) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if _, ok := r.S.wallets[userID]; ok {
		return nil
	}

	now := r.S.now()
	r.S.wallets[userID] = domain.Wallet{
		ID:        r.S.nextID("wallets"),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (r *WalletRepository) GetByUserID(_ context.Context, userID int64) (*domain.Wallet, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	w, ok := r.S.wallets[userID]
	if !ok {
		return nil, walletRepo.ErrWalletNotFound
	}
	return &w, nil
}

func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *WalletRepository) UpdateBalance(_ context.Context, w *domain.Wallet) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if err := r.S.failure("wallet.UpdateBalance"); err != nil {
		return err
	}
	if _, ok := r.S.wallets[w.UserID]; !ok {
		return walletRepo.ErrWalletNotFound
	}

	w.UpdatedAt = r.S.now()
	r.S.wallets[w.UserID] = *w
	return nil
}

// WalletTransactionRepository in-memory журнал операций кошелька
type WalletTransactionRepository struct{ S *Store }

func (r *WalletTransactionRepository) Create(_ context.Context, tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	created := *tx
	created.ID = r.S.nextID("wallet_transactions")
	created.CreatedAt = r.S.now()
	r.S.walletTxs = append(r.S.walletTxs, created)

	return &created, nil
}

func (r *WalletTransactionRepository) ListByUserID(_ context.Context, userID int64, limit int) ([]*domain.WalletTransaction, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	out := make([]*domain.WalletTransaction, 0)
	for i := len(r.S.walletTxs) - 1; i >= 0 && len(out) < limit; i-- {
		if tx := r.S.walletTxs[i]; tx.UserID == userID {
			out = append(out, &tx)
		}
	}
	return out, nil
}

// PaymentRepository in-memory репозиторий платежей
type PaymentRepository struct{ S *Store }

func (r *PaymentRepository) Create(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if err := r.S.failure("payment.Create"); err != nil {
		return nil, err
	}

	created := *p
	created.ID = r.S.nextID("payments")
	created.CreatedAt = r.S.now()
	created.UpdatedAt = created.CreatedAt
	r.S.payments[created.ID] = created

	return &created, nil
}

func (r *PaymentRepository) GetByID(_ context.Context, id int64) (*domain.Payment, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	p, ok := r.S.payments[id]
	if !ok {
		return nil, paymentRepo.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *PaymentRepository) GetByGatewayReference(_ context.Context, method domain.PaymentMethod, reference string) (*domain.Payment, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	for _, p := range r.S.payments {
		if p.Method == method && p.GatewayReference != nil && *p.GatewayReference == reference {
			return &p, nil
		}
	}
	return nil, paymentRepo.ErrPaymentNotFound
}

func (r *PaymentRepository) ListByBooking(_ context.Context, bookingID int64) ([]*domain.Payment, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	out := make([]*domain.Payment, 0)
	for _, p := range r.S.payments {
		if p.BookingID == bookingID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *PaymentRepository) ListStalePending(_ context.Context, before time.Time, limit int) ([]*domain.Payment, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	out := make([]*domain.Payment, 0)
	for _, p := range r.S.payments {
		if p.Status == domain.PaymentPending && p.Method != domain.MethodWallet && p.CreatedAt.Before(before) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PaymentRepository) Update(_ context.Context, p *domain.Payment) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	if err := r.S.failure("payment.Update"); err != nil {
		return err
	}
	if _, ok := r.S.payments[p.ID]; !ok {
		return paymentRepo.ErrPaymentNotFound
	}

	if p.GatewayReference != nil {
		for id, other := range r.S.payments {
			if id != p.ID && other.Method == p.Method && other.GatewayReference != nil &&
				*other.GatewayReference == *p.GatewayReference {
				return paymentRepo.ErrDuplicateGatewayReference
			}
		}
	}

	p.UpdatedAt = r.S.now()
	r.S.payments[p.ID] = *p
	return nil
}

// WebhookEventRepository in-memory журнал входящих вебхуков
type WebhookEventRepository struct{ S *Store }

func (r *WebhookEventRepository) InsertIfAbsent(_ context.Context, event *domain.WebhookEvent) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	for _, e := range r.S.webhookEvents {
		if e.IdempotencyKey == event.IdempotencyKey {
			return false, nil
		}
	}

	event.ID = r.S.nextID("webhook_events")
	event.Status = domain.WebhookQueued
	event.CreatedAt = r.S.now()
	event.UpdatedAt = event.CreatedAt
	r.S.webhookEvents[event.ID] = *event

	return true, nil
}

func (r *WebhookEventRepository) GetByIdempotencyKey(_ context.Context, key string) (*domain.WebhookEvent, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	for _, e := range r.S.webhookEvents {
		if e.IdempotencyKey == key {
			return &e, nil
		}
	}
	return nil, webhookRepo.ErrEventNotFound
}

func (r *WebhookEventRepository) GetForProcessing(_ context.Context, id int64) (*domain.WebhookEvent, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	e, ok := r.S.webhookEvents[id]
	if !ok || e.Status == domain.WebhookProcessed {
		return nil, webhookRepo.ErrEventLocked
	}
	return &e, nil
}

func (r *WebhookEventRepository) MarkProcessed(_ context.Context, id int64, processedAt time.Time) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	e, ok := r.S.webhookEvents[id]
	if !ok {
		return webhookRepo.ErrEventNotFound
	}

	e.Status = domain.WebhookProcessed
	e.Attempts++
	e.ProcessedAt = &processedAt
	e.LastError = nil
	e.UpdatedAt = r.S.now()
	r.S.webhookEvents[id] = e

	return nil
}

func (r *WebhookEventRepository) MarkFailed(_ context.Context, id int64, lastError string) (int, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	e, ok := r.S.webhookEvents[id]
	if !ok || e.Status == domain.WebhookProcessed {
		return 0, webhookRepo.ErrEventNotFound
	}

	e.Status = domain.WebhookFailed
	e.Attempts++
	e.LastError = &lastError
	e.UpdatedAt = r.S.now()
	r.S.webhookEvents[id] = e

	return e.Attempts, nil
}

func (r *WebhookEventRepository) ListRetryable(_ context.Context, maxAttempts int, queuedBefore time.Time, limit int) ([]int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()

	ids := make([]int64, 0)
	for id, e := range r.S.webhookEvents {
		failed := e.Status == domain.WebhookFailed && e.Attempts < maxAttempts
		stale := e.Status == domain.WebhookQueued && e.CreatedAt.Before(queuedBefore)
		if failed || stale {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
