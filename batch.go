package cellz

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
)

// notifier is anything whose notification can be deferred to a batch flush.
type notifier interface {
	flush()
}

// Batcher coalesces notifications. While a batch is open, containers queue
// themselves instead of notifying; the outermost batch flushes each queued
// container exactly once, in the order they were first queued.
type Batcher struct {
	mu      sync.Mutex
	depth   int
	pending []notifier
	queued  map[notifier]struct{}
}

// DefaultBatcher is the process-wide batcher used by Batch and by every
// Container.
var DefaultBatcher = &Batcher{}

// Batch runs fn inside a transaction on DefaultBatcher. N writes to M
// containers inside fn produce at most M notifications. Batches nest; only
// the outermost one flushes.
//
// Example:
//
//	cellz.Batch(func() {
//	    first.Set(cellz.Value("Ada"))
//	    last.Set(cellz.Value("Lovelace"))
//	})
func Batch(fn func()) {
	DefaultBatcher.Run(fn)
}

// ResetBatch discards any open transaction state on DefaultBatcher.
// Intended for tests.
func ResetBatch() {
	DefaultBatcher.Reset()
}

// Run executes fn as a transaction.
func (b *Batcher) Run(fn func()) {
	b.mu.Lock()
	b.depth++
	b.mu.Unlock()

	defer b.exit()
	fn()
}

// Active reports whether a transaction is open.
func (b *Batcher) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth > 0
}

// Reset clears depth and pending notifications without flushing.
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.depth = 0
	b.pending = nil
	b.queued = nil
}

func (b *Batcher) exit() {
	b.mu.Lock()
	if b.depth > 0 {
		b.depth--
	}
	if b.depth > 0 {
		b.mu.Unlock()
		return
	}
	pending := b.pending
	b.pending = nil
	b.queued = nil
	b.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	for _, n := range pending {
		n.flush()
	}
	capitan.Emit(context.Background(), BatchFlushed,
		KeyPending.Field(len(pending)),
	)
}

// enqueue queues n if a transaction is open and reports whether it did.
func (b *Batcher) enqueue(n notifier) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.depth == 0 {
		return false
	}
	if b.queued == nil {
		b.queued = make(map[notifier]struct{})
	}
	if _, ok := b.queued[n]; !ok {
		b.queued[n] = struct{}{}
		b.pending = append(b.pending, n)
	}
	return true
}
