// Package fakes содержит in-memory реализации репозиториев и внешних клиентов для тестов сервисов.
package fakes

import (
	"sync"
	"time"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
)

// Store общее in-memory хранилище. Репозитории работают поверх одного Store,
// TxManager делает снимок перед транзакцией и восстанавливает его при ошибке.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	bookings      map[int64]domain.Booking
	statusLogs    []domain.OrderStatusLog
	auditLogs     []domain.AuditLog
	quotations    map[int64]domain.Quotation
	wallets       map[int64]domain.Wallet // по user_id
	walletTxs     []domain.WalletTransaction
	payments      map[int64]domain.Payment
	webhookEvents map[int64]domain.WebhookEvent

	seq      map[string]int64
	failures map[string]error
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		bookings:      make(map[int64]domain.Booking),
		quotations:    make(map[int64]domain.Quotation),
		wallets:       make(map[int64]domain.Wallet),
		payments:      make(map[int64]domain.Payment),
		webhookEvents: make(map[int64]domain.WebhookEvent),
		seq:           make(map[string]int64),
	}
}

// SetClock подменяет источник времени для created_at/updated_at
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// claimID назначает следующий ID или сдвигает счетчик за явно заданный
func (s *Store) claimID(table string, id int64) int64 {
	if id == 0 {
		return s.nextID(table)
	}
	if id > s.seq[table] {
		s.seq[table] = id
	}
	return id
}

type snapshot struct {
	bookings      map[int64]domain.Booking
	statusLogs    []domain.OrderStatusLog
	auditLogs     []domain.AuditLog
	quotations    map[int64]domain.Quotation
	wallets       map[int64]domain.Wallet
	walletTxs     []domain.WalletTransaction
	payments      map[int64]domain.Payment
	webhookEvents map[int64]domain.WebhookEvent
	seq           map[string]int64
}

func (s *Store) snapshot() *snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &snapshot{
		bookings:      copyMap(s.bookings),
		statusLogs:    append([]domain.OrderStatusLog(nil), s.statusLogs...),
		auditLogs:     append([]domain.AuditLog(nil), s.auditLogs...),
		quotations:    copyMap(s.quotations),
		wallets:       copyMap(s.wallets),
		walletTxs:     append([]domain.WalletTransaction(nil), s.walletTxs...),
		payments:      copyMap(s.payments),
		webhookEvents: copyMap(s.webhookEvents),
		seq:           copyMap(s.seq),
	}
}

func (s *Store) restore(snap *snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookings = snap.bookings
	s.statusLogs = snap.statusLogs
	s.auditLogs = snap.auditLogs
	s.quotations = snap.quotations
	s.wallets = snap.wallets
	s.walletTxs = snap.walletTxs
	s.payments = snap.payments
	s.webhookEvents = snap.webhookEvents
	s.seq = snap.seq
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Методы для подготовки данных и проверок в тестах

// PutBooking сохраняет бронирование как есть; ID назначается, если он нулевой
func (s *Store) PutBooking(b domain.Booking) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.claimID("bookings", b.ID)
	s.bookings[b.ID] = b
	return b
}

// Booking возвращает текущее состояние бронирования
func (s *Store) Booking(id int64) (domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

// PutQuotation сохраняет квотацию как есть
func (s *Store) PutQuotation(q domain.Quotation) domain.Quotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = s.claimID("quotations", q.ID)
	s.quotations[q.ID] = q
	return q
}

// Quotation возвращает текущее состояние квотации
func (s *Store) Quotation(id int64) (domain.Quotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotations[id]
	return q, ok
}

// PutPayment сохраняет платеж как есть
func (s *Store) PutPayment(p domain.Payment) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.claimID("payments", p.ID)
	s.payments[p.ID] = p
	return p
}

// Payment возвращает текущее состояние платежа
func (s *Store) Payment(id int64) (domain.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	return p, ok
}

// Payments возвращает платежи бронирования в порядке создания
func (s *Store) Payments(bookingID int64) []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Payment
	for id := int64(1); id <= s.seq["payments"]; id++ {
		if p, ok := s.payments[id]; ok && p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out
}

// Wallet возвращает кошелек пользователя
func (s *Store) Wallet(userID int64) (domain.Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	return w, ok
}

// WalletTransactions возвращает операции пользователя в порядке записи
func (s *Store) WalletTransactions(userID int64) []domain.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.WalletTransaction
	for _, tx := range s.walletTxs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

// StatusLogs возвращает журнал статусов бронирования
func (s *Store) StatusLogs(bookingID int64) []domain.OrderStatusLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OrderStatusLog
	for _, e := range s.statusLogs {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out
}

// AuditActions возвращает действия аудита по ресурсу в порядке записи
func (s *Store) AuditActions(resourceType string, resourceID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, e := range s.auditLogs {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, e.Action)
		}
	}
	return out
}

// AuditLogs возвращает весь журнал аудита
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLog(nil), s.auditLogs...)
}

// WebhookEvents возвращает все сохраненные события
func (s *Store) WebhookEvents() []domain.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.WebhookEvent, 0, len(s.webhookEvents))
	for id := int64(1); id <= s.seq["webhook_events"]; id++ {
		if e, ok := s.webhookEvents[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// FailOn заставляет операцию репозитория (например "audit.Create") возвращать err
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures == nil {
		s.failures = make(map[string]error)
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}
