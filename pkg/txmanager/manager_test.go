package txmanager_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-HomeServiceBooking/pkg/dbmetrics"
	"github.com/m04kA/SMC-HomeServiceBooking/pkg/txmanager"
)

type fakeTx struct {
	dbmetrics.DBExecutor
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	opts     []*sql.TxOptions
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts *sql.TxOptions) (dbmetrics.TxExecutor, error) {
	b.opts = append(b.opts, opts)
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestDo_CommitsInReadCommitted(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{}}
	m := txmanager.NewTransactionManager(db)

	err := m.Do(context.Background(), func(ctx context.Context) error {
		assert.True(t, dbmetrics.IsInTransaction(ctx))
		return nil
	})

	require.NoError(t, err)
	require.Len(t, db.opts, 1)
	assert.Equal(t, sql.LevelReadCommitted, db.opts[0].Isolation)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)
}

func TestDo_RollsBackOnError(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{}}
	m := txmanager.NewTransactionManager(db)
	boom := errors.New("boom")

	err := m.Do(context.Background(), func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.True(t, db.tx.rolledBack)
	assert.False(t, db.tx.committed)
}

func TestDo_NestedCallReusesTransaction(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{}}
	m := txmanager.NewTransactionManager(db)

	err := m.Do(context.Background(), func(ctx context.Context) error {
		return m.Do(ctx, func(context.Context) error { return nil })
	})

	require.NoError(t, err)
	assert.Len(t, db.opts, 1)
}

func TestDo_RollsBackOnPanic(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{}}
	m := txmanager.NewTransactionManager(db)

	assert.Panics(t, func() {
		_ = m.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.True(t, db.tx.rolledBack)
}

func TestDo_BeginAndCommitErrors(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		m := txmanager.NewTransactionManager(&fakeBeginner{beginErr: errors.New("pool exhausted")})

		called := false
		err := m.Do(context.Background(), func(context.Context) error {
			called = true
			return nil
		})

		assert.ErrorIs(t, err, txmanager.ErrBeginTx)
		assert.False(t, called)
	})

	t.Run("commit", func(t *testing.T) {
		db := &fakeBeginner{tx: &fakeTx{commitErr: errors.New("serialization failure")}}
		m := txmanager.NewTransactionManager(db)

		err := m.Do(context.Background(), func(context.Context) error { return nil })

		assert.ErrorIs(t, err, txmanager.ErrCommit)
	})
}
