package knowledge

import "errors"

var (
	// ErrStoreUnavailable wraps transport-level failures against the graph
	// store. It is retryable; the store retries internally with backoff
	// before surfacing it.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrNotFound indicates a node or edge lookup matched nothing.
	ErrNotFound = errors.New("not found")
)
