package cache

import "context"

// Invalidator is the contract the event handlers need from the cache
// collaborator. The cache's storage mechanics live elsewhere; only the
// eviction trigger is in scope here.
type Invalidator interface {
	// Invalidate evicts one exact key.
	Invalidate(ctx context.Context, key string) error
	// InvalidatePrefix evicts every key starting with the given prefix.
	// Used when an event can affect multiple cached result sets.
	InvalidatePrefix(ctx context.Context, prefix string) error
}
