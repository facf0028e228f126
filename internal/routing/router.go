// Package routing holds the subscribe loop's listener table: for each
// delivery key (a channel name, or a wildcard/group route reported by
// the server) it keeps the ordered set of consumer queues registered
// for it, and delivers values to every one of them.
//
// It is adapted from an in-process event bus shape — a map of
// destinations behind a mutex, nil-safe on the zero value — but
// reshaped for two requirements a generic broadcast bus doesn't have:
// delivery must follow insertion order per key (so a plain map can't
// be the source of truth), and the default send blocks on a full
// queue rather than dropping the value, since head-of-line blocking
// across all listeners is the specified cost of zero message loss.
package routing

import (
	"context"
	"errors"
	"sync"
)

// ErrReducedResiliencyUnimplemented is returned by TrySend, the
// drop-slowest delivery mode reserved for a future "reduced
// resiliency" policy. The core only implements the blocking
// high-resiliency policy described by the specification.
var ErrReducedResiliencyUnimplemented = errors.New("routing: reduced resiliency delivery is not implemented")

// Queue is a bounded consumer channel bound into the routing table.
type Queue[T any] chan T

// Table routes values of type T to listener queues registered per key.
// The zero value is not ready to use; call New.
type Table[T any] struct {
	mu        sync.Mutex
	listeners map[string][]Queue[T]
}

// New creates an empty routing table.
func New[T any]() *Table[T] {
	return &Table[T]{listeners: make(map[string][]Queue[T])}
}

// Add registers q as a listener for key, appended after any existing
// listeners for that key. Returns true if key was not previously
// present in the table (the caller may need to recompute a derived
// encoding of the key set).
func (t *Table[T]) Add(key string, q Queue[T]) (newKey bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, existed := t.listeners[key]
	t.listeners[key] = append(t.listeners[key], q)
	return !existed
}

// Drop removes q from key's listener list. If the list becomes empty,
// the key is removed from the table entirely and emptiedKey is true.
// Safe to call with a queue that isn't registered (no-op).
func (t *Table[T]) Drop(key string, q Queue[T]) (emptiedKey bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	qs, ok := t.listeners[key]
	if !ok {
		return false
	}
	filtered := qs[:0]
	for _, existing := range qs {
		if existing != q {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == 0 {
		delete(t.listeners, key)
		return true
	}
	t.listeners[key] = filtered
	return false
}

// DropAll removes every listener registered under key, regardless of
// identity. Used when the loop tears itself down and closes every
// queue it owns.
func (t *Table[T]) DropAll(key string) []Queue[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	qs := t.listeners[key]
	delete(t.listeners, key)
	return qs
}

// Keys returns the current set of registered keys (channel names the
// loop must keep polling for). Order is unspecified.
func (t *Table[T]) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.listeners))
	for k := range t.listeners {
		keys = append(keys, k)
	}
	return keys
}

// Empty reports whether the table has no registered keys at all.
func (t *Table[T]) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners) == 0
}

// Listeners returns a snapshot of the ordered listener list for key.
// The returned slice must not be mutated by the caller.
func (t *Table[T]) Listeners(key string) []Queue[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listeners[key]
}

// Send delivers v to every listener registered for key, in insertion
// order, blocking on each send. If ctx is cancelled while blocked on a
// full queue, Send returns ctx.Err() without completing delivery to
// the remaining listeners — the caller is expected to treat this as
// loop shutdown, not as a per-message failure.
func (t *Table[T]) Send(ctx context.Context, key string, v T) error {
	for _, q := range t.Listeners(key) {
		select {
		case q <- v:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// TrySend would implement "reduced resiliency" delivery (drop the
// value for listeners whose queue is full instead of blocking). It is
// declared but not implemented, matching the originating
// specification's treatment of reduced resiliency as a future
// extension outside the core contract.
func (t *Table[T]) TrySend(context.Context, string, T) error {
	return ErrReducedResiliencyUnimplemented
}
