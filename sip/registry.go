package sip

import (
	"context"
	"sync"

	"braces.dev/errtrace"
)

// ClientTransactionStore tracks live client transactions by key so inbound
// responses can be routed back to the transaction that created the request
// that provoked them.
type ClientTransactionStore interface {
	// Store adds tx under key. It returns [ErrTransactionExists] if key is
	// already tracked.
	Store(ctx context.Context, key ClientTransactionKey, tx ClientTransaction) error
	// Load returns the transaction tracked under key, or
	// [ErrTransactionNotFound].
	Load(ctx context.Context, key ClientTransactionKey) (ClientTransaction, error)
	// Delete removes the transaction tracked under key. It returns
	// [ErrTransactionNotFound] if key is not tracked.
	Delete(ctx context.Context, key ClientTransactionKey) error
	// All returns every tracked transaction, keyed by transaction key.
	All(ctx context.Context) (map[ClientTransactionKey]ClientTransaction, error)
}

// memoryClientTransactionStore is an in-memory [ClientTransactionStore]
// backed by a map guarded by a mutex.
type memoryClientTransactionStore struct {
	mu  sync.RWMutex
	txs map[ClientTransactionKey]ClientTransaction
}

// NewMemoryClientTransactionStore creates a new in-memory
// [ClientTransactionStore].
func NewMemoryClientTransactionStore() ClientTransactionStore {
	return &memoryClientTransactionStore{
		txs: make(map[ClientTransactionKey]ClientTransaction),
	}
}

func (s *memoryClientTransactionStore) Store(_ context.Context, key ClientTransactionKey, tx ClientTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[key]; ok {
		return errtrace.Wrap(ErrTransactionExists)
	}
	s.txs[key] = tx
	return nil
}

func (s *memoryClientTransactionStore) Load(_ context.Context, key ClientTransactionKey) (ClientTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[key]
	if !ok {
		return nil, errtrace.Wrap(ErrTransactionNotFound)
	}
	return tx, nil
}

func (s *memoryClientTransactionStore) Delete(_ context.Context, key ClientTransactionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[key]; !ok {
		return errtrace.Wrap(ErrTransactionNotFound)
	}
	delete(s.txs, key)
	return nil
}

func (s *memoryClientTransactionStore) All(context.Context) (map[ClientTransactionKey]ClientTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make(map[ClientTransactionKey]ClientTransaction, len(s.txs))
	for k, tx := range s.txs {
		all[k] = tx
	}
	return all, nil
}
