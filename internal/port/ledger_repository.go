package port

import (
	"context"

	"github.com/rl1809/codemarket/internal/core/domain"
)

type LedgerRepository interface {
	// CreateAccount registers a new vendor and returns a copy of its account
	CreateAccount(ctx context.Context, name, url string) (*domain.Account, error)

	// Lookup resolves an identity first, then a vendor name, returning a copy
	Lookup(ctx context.Context, key string) (*domain.Account, error)

	// ByID resolves an identity only
	ByID(ctx context.Context, id string) (*domain.Account, error)

	// Update applies fn to the named account under its lock; an error from fn discards every change
	Update(ctx context.Context, name string, fn func(acct *domain.Account) error) (uint64, error)

	// Exchange applies fn to two accounts locked together; both commit or neither does
	Exchange(ctx context.Context, from, to string, fn func(from, to *domain.Account) error) (uint64, error)

	// Snapshot copies the whole ledger at one point in time
	Snapshot(ctx context.Context) domain.Snapshot
}
