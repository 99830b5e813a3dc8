package index

import "errors"

var (
	// ErrEmbeddingFailed marks a failed embedding gateway call. The batch that
	// triggered it is rejected wholesale; callers retry the batch, not chunks.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrInvalidDeletionRequest marks a Delete call with no identifying
	// criterion.
	ErrInvalidDeletionRequest = errors.New("deletion requires chunk ids or a user id")

	// ErrTenantIsolation marks a cross-tenant read, an internal invariant
	// breach. It is a bug signal and must never be reachable from user input.
	ErrTenantIsolation = errors.New("tenant isolation violation")
)
