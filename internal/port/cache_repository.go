package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// CompleteIdempotency marks a key as belonging to a finished request
	CompleteIdempotency(ctx context.Context, key string) error

	// ReleaseIdempotency frees a key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
