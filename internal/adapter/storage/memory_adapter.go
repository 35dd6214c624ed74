package storage

import (
	"context"
	"sync"

	"github.com/rl1809/codemarket/internal/core/domain"
)

// MemoryTransferLog keeps transfers in process. Used when no MySQL DSN is
// configured.
type MemoryTransferLog struct {
	mu        sync.RWMutex
	transfers []domain.Transfer
}

func NewMemoryTransferLog() *MemoryTransferLog {
	return &MemoryTransferLog{}
}

func (m *MemoryTransferLog) Append(_ context.Context, t domain.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, t)
	return nil
}

func (m *MemoryTransferLog) ListByIdentity(_ context.Context, identity string) ([]domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Transfer
	for _, t := range m.transfers {
		if t.SellerID == identity || t.BuyerID == identity {
			out = append(out, t)
		}
	}
	return out, nil
}

// MemoryCache is an in-process idempotency set without expiry.
type MemoryCache struct {
	mu   sync.Mutex
	keys map[string]bool // value reports completion
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{keys: make(map[string]bool)}
}

func (m *MemoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = false
	return true, nil
}

func (m *MemoryCache) CompleteIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		m.keys[key] = true
	}
	return nil
}

func (m *MemoryCache) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if done := m.keys[key]; !done {
		delete(m.keys, key)
	}
	return nil
}
