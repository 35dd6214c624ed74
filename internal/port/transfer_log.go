package port

import (
	"context"

	"github.com/rl1809/codemarket/internal/core/domain"
)

type TransferLog interface {
	// Append durably records a transfer; the purchase is only committed if this succeeds
	Append(ctx context.Context, t domain.Transfer) error

	// ListByIdentity returns transfers where the identity is seller or buyer, oldest first.
	// Names can be registered again after a restart; identities never are.
	ListByIdentity(ctx context.Context, identity string) ([]domain.Transfer, error)
}

type JournalRepository interface {
	// AppendEntries persists pool changes in one transaction
	AppendEntries(ctx context.Context, entries []domain.JournalEntry) error
}
