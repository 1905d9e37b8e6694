package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	walletRepo "github.com/m04kA/SMC-HomeServiceBooking/internal/infra/storage/wallet"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet/models"
)

const (
	outcomeOK           = "ok"
	outcomeInsufficient = "insufficient_balance"
	outcomeError        = "error"
)

// Service единственный писатель балансов кошельков
type Service struct {
	walletRepo      WalletRepository
	transactionRepo TransactionRepository
	audit           AuditRecorder
	txManager       TransactionManager
	metrics         Metrics
	logger          Logger
}

// NewService создает новый экземпляр сервиса кошельков
func NewService(
	walletRepo WalletRepository,
	transactionRepo TransactionRepository,
	audit AuditRecorder,
	txManager TransactionManager,
	metrics Metrics,
	logger Logger,
) *Service {
	return &Service{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		audit:           audit,
		txManager:       txManager,
		metrics:         metrics,
		logger:          logger,
	}
}

// Credit зачисляет amount на кошелек пользователя.
// Если в контексте есть транзакция, операция выполняется в ней.
func (s *Service) Credit(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	description string,
	referenceType domain.WalletReferenceType,
	referenceID *int64,
) (*domain.WalletTransaction, error) {
	return s.apply(ctx, domain.SystemActorID, userID, domain.WalletCredit, amount, description, referenceType, referenceID)
}

// Debit списывает amount с кошелька пользователя.
// При недостатке средств возвращает *InsufficientBalanceError и ничего не меняет.
func (s *Service) Debit(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	description string,
	referenceType domain.WalletReferenceType,
	referenceID *int64,
) (*domain.WalletTransaction, error) {
	return s.apply(ctx, domain.SystemActorID, userID, domain.WalletDebit, amount, description, referenceType, referenceID)
}

// AdminCredit ручное пополнение кошелька (topup, referral, admin-credit)
func (s *Service) AdminCredit(ctx context.Context, req *models.CreditRequest) (*models.TransactionResponse, error) {
	s.logger.Info("AdminCredit: user=%d amount=%s type=%s by actor=%d",
		req.UserID, req.Amount.String(), req.ReferenceType, req.ActorID)

	if req.ActorRole != domain.RoleAdmin {
		s.logger.Warn("AdminCredit: access denied for actor=%d role=%s", req.ActorID, req.ActorRole)
		return nil, ErrAccessDenied
	}

	switch req.ReferenceType {
	case domain.ReferenceTopup, domain.ReferenceReferral, domain.ReferenceAdminCredit:
	default:
		s.logger.Warn("AdminCredit: reference type=%s is not allowed for manual credit", req.ReferenceType)
		return nil, fmt.Errorf("%w: reference type %q is not allowed", ErrInvalidInput, req.ReferenceType)
	}

	tx, err := s.apply(ctx, req.ActorID, req.UserID, domain.WalletCredit, req.Amount,
		strings.TrimSpace(req.Description), req.ReferenceType, nil)
	if err != nil {
		return nil, err
	}

	resp := models.FromDomainTransaction(tx)
	return &resp, nil
}

func (s *Service) apply(
	ctx context.Context,
	actorID int64,
	userID int64,
	txType domain.WalletTransactionType,
	amount decimal.Decimal,
	description string,
	referenceType domain.WalletReferenceType,
	referenceID *int64,
) (*domain.WalletTransaction, error) {
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		s.logger.Warn("apply: non-positive %s amount=%s for user=%d", txType, amount.String(), userID)
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	if !referenceType.IsValid() {
		return nil, fmt.Errorf("%w: unknown reference type %q", ErrInvalidInput, referenceType)
	}

	var created *domain.WalletTransaction

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.walletRepo.EnsureExists(ctx, userID); err != nil {
			return fmt.Errorf("%w: apply - ensure wallet: %v", ErrInternal, err)
		}

		w, err := s.walletRepo.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("%w: apply - lock wallet: %v", ErrInternal, err)
		}

		before := w.Balance

		switch txType {
		case domain.WalletCredit:
			w.Balance = w.Balance.Add(amount)
			w.TotalEarned = w.TotalEarned.Add(amount)
		case domain.WalletDebit:
			if w.Balance.LessThan(amount) {
				return &InsufficientBalanceError{Requested: amount, Available: w.Balance}
			}
			w.Balance = w.Balance.Sub(amount)
			w.TotalSpent = w.TotalSpent.Add(amount)
		}

		if err := s.walletRepo.UpdateBalance(ctx, w); err != nil {
			return fmt.Errorf("%w: apply - update wallet: %v", ErrInternal, err)
		}

		created, err = s.transactionRepo.Create(ctx, &domain.WalletTransaction{
			WalletID:      w.ID,
			UserID:        userID,
			Type:          txType,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  w.Balance,
			Description:   description,
			ReferenceType: referenceType,
			ReferenceID:   referenceID,
		})
		if err != nil {
			return fmt.Errorf("%w: apply - insert transaction: %v", ErrInternal, err)
		}

		action := domain.ActionWalletCredited
		if txType == domain.WalletDebit {
			action = domain.ActionWalletDebited
		}

		if err := s.audit.Record(ctx, actorID, action, domain.ResourceWallet, w.ID,
			map[string]interface{}{"balance": before},
			map[string]interface{}{
				"balance":       w.Balance,
				"amount":        amount,
				"referenceType": referenceType,
				"referenceId":   referenceID,
			},
		); err != nil {
			return fmt.Errorf("%w: apply - audit: %v", ErrInternal, err)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			s.metrics.WalletOperation(string(txType), outcomeInsufficient)
			s.logger.Warn("apply: insufficient balance for user=%d: %v", userID, err)
			return nil, err
		}
		s.metrics.WalletOperation(string(txType), outcomeError)
		s.logger.Error("apply: %s of %s for user=%d failed: %v", txType, amount.String(), userID, err)
		if errors.Is(err, ErrInternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: apply - transaction: %v", ErrInternal, err)
	}

	s.metrics.WalletOperation(string(txType), outcomeOK)
	s.logger.Info("apply: %s of %s for user=%d, balance %s -> %s",
		txType, amount.String(), userID, created.BalanceBefore.String(), created.BalanceAfter.String())

	return created, nil
}

// GetBalance возвращает кошелек пользователя.
// Для пользователя без кошелька возвращается нулевой баланс.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, walletRepo.ErrWalletNotFound) {
			return &domain.Wallet{
				UserID:      userID,
				Balance:     decimal.Zero,
				TotalEarned: decimal.Zero,
				TotalSpent:  decimal.Zero,
			}, nil
		}
		s.logger.Error("GetBalance: repository error for user=%d: %v", userID, err)
		return nil, fmt.Errorf("%w: GetBalance - repository error: %v", ErrInternal, err)
	}

	return w, nil
}

// GetHistory возвращает последние операции пользователя, новые первыми
func (s *Service) GetHistory(ctx context.Context, userID int64, limit int) ([]*domain.WalletTransaction, error) {
	limit = normalizeLimit(limit)

	history, err := s.transactionRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		s.logger.Error("GetHistory: repository error for user=%d: %v", userID, err)
		return nil, fmt.Errorf("%w: GetHistory - repository error: %v", ErrInternal, err)
	}

	return history, nil
}

// GetWallet возвращает баланс и историю. Доступно владельцу и администратору.
func (s *Service) GetWallet(ctx context.Context, req *models.GetWalletRequest) (*models.WalletResponse, error) {
	s.logger.Info("GetWallet: user=%d requested by=%d role=%s", req.UserID, req.RequesterID, req.RequesterRole)

	if req.RequesterID != req.UserID && req.RequesterRole != domain.RoleAdmin {
		s.logger.Warn("GetWallet: access denied for user=%d to wallet of user=%d", req.RequesterID, req.UserID)
		return nil, ErrAccessDenied
	}

	w, err := s.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	history, err := s.GetHistory(ctx, req.UserID, req.Limit)
	if err != nil {
		return nil, err
	}

	return models.FromDomainWallet(w, history), nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return domain.DefaultWalletHistoryLimit
	}
	if limit > domain.MaxWalletHistoryLimit {
		return domain.MaxWalletHistoryLimit
	}
	return limit
}
