package wallet_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/internal/domain"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/audit"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/service/wallet/models"
	"github.com/m04kA/SMC-HomeServiceBooking/internal/testutil/fakes"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/logger"
)

const userID int64 = 42

type env struct {
	store   *fakes.Store
	metrics *fakes.Metrics
	svc     *wallet.Service
}

func newEnv() *env {
	store := fakes.NewStore()
	metrics := &fakes.Metrics{}
	svc := wallet.NewService(
		&fakes.WalletRepository{S: store},
		&fakes.WalletTransactionRepository{S: store},
		audit.NewService(&fakes.AuditRepository{S: store}),
		fakes.NewTxManager(store),
		metrics,
		logger.NewNop(),
	)
	return &env{store: store, metrics: metrics, svc: svc}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCredit_CreatesWalletAndLedgerEntry(t *testing.T) {
	e := newEnv()

	tx, err := e.svc.Credit(context.Background(), userID, dec("100.00"), "topup", domain.ReferenceTopup, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.WalletCredit, tx.Type)
	assert.True(t, tx.BalanceBefore.IsZero())
	assert.True(t, tx.BalanceAfter.Equal(dec("100")))

	w, ok := e.store.Wallet(userID)
	require.True(t, ok)
	assert.True(t, w.Balance.Equal(dec("100")))
	assert.True(t, w.TotalEarned.Equal(dec("100")))
	assert.True(t, w.IsBalanced())

	assert.Equal(t, []string{domain.ActionWalletCredited}, e.store.AuditActions(domain.ResourceWallet, w.ID))
	assert.Equal(t, []string{"wallet:credit:ok"}, e.metrics.Events())
}

func TestLedger_EntriesChainBalances(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	_, err := e.svc.Credit(ctx, userID, dec("50"), "", domain.ReferenceTopup, nil)
	require.NoError(t, err)
	_, err = e.svc.Debit(ctx, userID, dec("20.50"), "", domain.ReferenceBooking, nil)
	require.NoError(t, err)
	_, err = e.svc.Credit(ctx, userID, dec("5.25"), "", domain.ReferenceRefund, nil)
	require.NoError(t, err)

	entries := e.store.WalletTransactions(userID)
	require.Len(t, entries, 3)

	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].BalanceBefore.Equal(entries[i-1].BalanceAfter), "entry %d does not continue the chain", i)
	}

	w, _ := e.store.Wallet(userID)
	assert.True(t, w.Balance.Equal(dec("34.75")))
	assert.True(t, w.Balance.Equal(entries[2].BalanceAfter))
	assert.True(t, w.IsBalanced())
}

func TestDebit_InsufficientBalance(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	_, err := e.svc.Credit(ctx, userID, dec("10"), "", domain.ReferenceTopup, nil)
	require.NoError(t, err)

	_, err = e.svc.Debit(ctx, userID, dec("10.01"), "", domain.ReferenceBooking, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	var insufficient *wallet.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Requested.Equal(dec("10.01")))
	assert.True(t, insufficient.Available.Equal(dec("10")))

	w, _ := e.store.Wallet(userID)
	assert.True(t, w.Balance.Equal(dec("10")))
	assert.Len(t, e.store.WalletTransactions(userID), 1)
	assert.Contains(t, e.metrics.Events(), "wallet:debit:insufficient_balance")
}

func TestApply_RejectsInvalidInput(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name: "zero amount",
			call: func() error {
				_, err := e.svc.Credit(ctx, userID, decimal.Zero, "", domain.ReferenceTopup, nil)
				return err
			},
			wantErr: wallet.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			call: func() error {
				_, err := e.svc.Debit(ctx, userID, dec("-1"), "", domain.ReferenceBooking, nil)
				return err
			},
			wantErr: wallet.ErrInvalidAmount,
		},
		{
			name: "amount rounds to zero",
			call: func() error {
				_, err := e.svc.Credit(ctx, userID, dec("0.001"), "", domain.ReferenceTopup, nil)
				return err
			},
			wantErr: wallet.ErrInvalidAmount,
		},
		{
			name: "unknown reference type",
			call: func() error {
				_, err := e.svc.Credit(ctx, userID, dec("1"), "", domain.WalletReferenceType("gift"), nil)
				return err
			},
			wantErr: wallet.ErrInvalidInput,
		},
		{
			name: "invalid user",
			call: func() error {
				_, err := e.svc.Credit(ctx, 0, dec("1"), "", domain.ReferenceTopup, nil)
				return err
			},
			wantErr: wallet.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.wantErr)
		})
	}

	_, ok := e.store.Wallet(userID)
	assert.False(t, ok)
}

func TestApply_AuditFailureRollsBack(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	_, err := e.svc.Credit(ctx, userID, dec("10"), "", domain.ReferenceTopup, nil)
	require.NoError(t, err)

	e.store.FailOn("audit.Create", errors.New("disk full"))

	_, err = e.svc.Credit(ctx, userID, dec("5"), "", domain.ReferenceTopup, nil)
	assert.ErrorIs(t, err, wallet.ErrInternal)

	w, _ := e.store.Wallet(userID)
	assert.True(t, w.Balance.Equal(dec("10")))
	assert.Len(t, e.store.WalletTransactions(userID), 1)
	assert.Contains(t, e.metrics.Events(), "wallet:credit:error")
}

func TestDebit_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	_, err := e.svc.Credit(ctx, userID, dec("50"), "", domain.ReferenceTopup, nil)
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Debit(ctx, userID, dec("10"), "", domain.ReferenceBooking, nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, wallet.ErrInsufficientBalance):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, insufficient)

	w, _ := e.store.Wallet(userID)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.IsBalanced())
	assert.Len(t, e.store.WalletTransactions(userID), 6)
}

func TestAdminCredit(t *testing.T) {
	ctx := context.Background()

	t.Run("admin tops up", func(t *testing.T) {
		e := newEnv()

		resp, err := e.svc.AdminCredit(ctx, &models.CreditRequest{
			ActorID:       1,
			ActorRole:     domain.RoleAdmin,
			UserID:        userID,
			Amount:        dec("25"),
			Description:   "  goodwill  ",
			ReferenceType: domain.ReferenceAdminCredit,
		})
		require.NoError(t, err)

		assert.Equal(t, "credit", resp.Type)
		assert.Equal(t, "goodwill", resp.Description)
		assert.True(t, resp.BalanceAfter.Equal(dec("25")))

		logs := e.store.AuditLogs()
		require.Len(t, logs, 1)
		assert.Equal(t, int64(1), logs[0].ActorID)
	})

	t.Run("non admin is denied", func(t *testing.T) {
		e := newEnv()

		_, err := e.svc.AdminCredit(ctx, &models.CreditRequest{
			ActorID:       userID,
			ActorRole:     domain.RoleCustomer,
			UserID:        userID,
			Amount:        dec("25"),
			ReferenceType: domain.ReferenceTopup,
		})
		assert.ErrorIs(t, err, wallet.ErrAccessDenied)
	})

	t.Run("booking reference is not a manual credit", func(t *testing.T) {
		e := newEnv()

		_, err := e.svc.AdminCredit(ctx, &models.CreditRequest{
			ActorID:       1,
			ActorRole:     domain.RoleAdmin,
			UserID:        userID,
			Amount:        dec("25"),
			ReferenceType: domain.ReferenceBooking,
		})
		assert.ErrorIs(t, err, wallet.ErrInvalidInput)
	})
}

func TestGetWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("missing wallet has zero balance", func(t *testing.T) {
		e := newEnv()

		resp, err := e.svc.GetWallet(ctx, &models.GetWalletRequest{
			RequesterID:   userID,
			RequesterRole: domain.RoleCustomer,
			UserID:        userID,
		})
		require.NoError(t, err)
		assert.True(t, resp.Balance.IsZero())
		assert.Empty(t, resp.Transactions)
	})

	t.Run("history newest first and limited", func(t *testing.T) {
		e := newEnv()
		for _, amount := range []string{"1", "2", "3"} {
			_, err := e.svc.Credit(ctx, userID, dec(amount), "", domain.ReferenceTopup, nil)
			require.NoError(t, err)
		}

		resp, err := e.svc.GetWallet(ctx, &models.GetWalletRequest{
			RequesterID:   99,
			RequesterRole: domain.RoleAdmin,
			UserID:        userID,
			Limit:         2,
		})
		require.NoError(t, err)
		require.Len(t, resp.Transactions, 2)
		assert.True(t, resp.Transactions[0].Amount.Equal(dec("3")))
		assert.True(t, resp.Transactions[1].Amount.Equal(dec("2")))
		assert.True(t, resp.Balance.Equal(dec("6")))
	})

	t.Run("other customer is denied", func(t *testing.T) {
		e := newEnv()

		_, err := e.svc.GetWallet(ctx, &models.GetWalletRequest{
			RequesterID:   7,
			RequesterRole: domain.RoleCustomer,
			UserID:        userID,
		})
		assert.ErrorIs(t, err, wallet.ErrAccessDenied)
	})
}
