package storage

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/codemarket/internal/core/domain"
)

type accountEntry struct {
	name string
	mu   sync.Mutex
	acct *domain.Account
}

// MemoryLedger is the authoritative ledger. The directory lock is held
// shared by mutators and exclusively by registration and snapshots, so a
// snapshot never sees half of a mutation. Per-account mutexes serialize
// mutations of one vendor.
type MemoryLedger struct {
	mu      sync.RWMutex
	byName  map[string]*accountEntry
	byID    map[string]string
	order   []string
	version atomic.Uint64
	now     func() time.Time
}

// NewMemoryLedger creates a ledger whose stored account holds the given items.
func NewMemoryLedger(stored []domain.Item) *MemoryLedger {
	l := &MemoryLedger{
		byName: make(map[string]*accountEntry),
		byID:   make(map[string]string),
		now:    time.Now,
	}
	acct := domain.NewAccount("", domain.StoredAccount, "", l.now())
	acct.Items = append(acct.Items, stored...)
	l.byName[domain.StoredAccount] = &accountEntry{name: acct.Name, acct: acct}
	return l
}

func (l *MemoryLedger) CreateAccount(_ context.Context, name, url string) (*domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byName[name]; exists {
		return nil, domain.Errorf(domain.KindDuplicateVendorName, "vendor %q is already registered", name)
	}
	if url != "" {
		for _, n := range l.order {
			if l.byName[n].acct.URL == url {
				return nil, domain.Errorf(domain.KindDuplicateVendorURL, "url %q is already registered", url)
			}
		}
	}

	id := uuid.NewString()
	for _, taken := l.byID[id]; taken; _, taken = l.byID[id] {
		id = uuid.NewString()
	}

	acct := domain.NewAccount(id, name, url, l.now())
	l.byName[name] = &accountEntry{name: name, acct: acct}
	l.byID[id] = name
	l.order = append(l.order, name)
	l.version.Add(1)

	return acct.Clone(), nil
}

func (l *MemoryLedger) Lookup(ctx context.Context, key string) (*domain.Account, error) {
	if acct, err := l.ByID(ctx, key); err == nil {
		return acct, nil
	}

	l.mu.RLock()
	e, ok := l.byName[key]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.Errorf(domain.KindUnknownVendor, "vendor %q not found", key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.Clone(), nil
}

func (l *MemoryLedger) ByID(_ context.Context, id string) (*domain.Account, error) {
	l.mu.RLock()
	name, ok := l.byID[id]
	var e *accountEntry
	if ok {
		e = l.byName[name]
	}
	l.mu.RUnlock()
	if !ok {
		return nil, domain.Errorf(domain.KindUnknownVendor, "identity not found")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.Clone(), nil
}

func (l *MemoryLedger) Update(ctx context.Context, name string, fn func(acct *domain.Account) error) (uint64, error) {
	return l.Exchange(ctx, name, name, func(from, _ *domain.Account) error {
		return fn(from)
	})
}

func (l *MemoryLedger) Exchange(_ context.Context, from, to string, fn func(from, to *domain.Account) error) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fe, ok := l.byName[from]
	if !ok {
		return 0, domain.Errorf(domain.KindUnknownVendor, "vendor %q not found", from)
	}
	te, ok := l.byName[to]
	if !ok {
		return 0, domain.Errorf(domain.KindUnknownVendor, "vendor %q not found", to)
	}

	entries := []*accountEntry{fe}
	if te != fe {
		entries = append(entries, te)
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].name < entries[j].name
		})
	}
	for _, e := range entries {
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	fc := fe.acct.Clone()
	tc := fc
	if te != fe {
		tc = te.acct.Clone()
	}
	if err := fn(fc, tc); err != nil {
		return 0, err
	}

	now := l.now()
	fc.UpdatedAt = now
	tc.UpdatedAt = now
	fe.acct = fc
	te.acct = tc
	return l.version.Add(1), nil
}

func (l *MemoryLedger) Snapshot(_ context.Context) domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := domain.Snapshot{
		Version:  l.version.Load(),
		Accounts: make(map[string][]domain.Item, len(l.byName)),
		Names:    make([]string, 0, len(l.order)),
		URLs:     make([]string, 0, len(l.order)),
	}
	for name, e := range l.byName {
		snap.Accounts[name] = e.acct.Clone().Items
	}
	for _, name := range l.order {
		snap.Names = append(snap.Names, name)
		snap.URLs = append(snap.URLs, l.byName[name].acct.URL)
	}
	return snap
}
