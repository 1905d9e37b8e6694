package fakes

import (
	"context"
	"sync"
)

type txKey struct{}

// TxManager эмулирует транзакции поверх Store.
// Транзакции выполняются строго по очереди, вложенный Do присоединяется к внешней транзакции.
type TxManager struct {
	store *Store
	mu    sync.Mutex

	callsMu sync.Mutex
	calls   int
}

// NewTxManager создает менеджер транзакций для хранилища
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Do выполняет fn в транзакции; при ошибке состояние хранилища откатывается
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.callsMu.Lock()
	m.calls++
	m.callsMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}

	return nil
}

// Calls число внешних транзакций
func (m *TxManager) Calls() int {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	return m.calls
}

// InTx сообщает, выполняется ли код внутри транзакции
func InTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}
