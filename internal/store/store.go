// Package store holds the client-side caches of server resources. Every
// operation follows the same three-phase contract: mark in-flight and clear
// the previous error, call the gateway, then either apply the result to the
// cached items or record the failure. Canceled operations settle silently.
package store

import (
	"context"
	"errors"
	"sync"
)

// tracker carries the per-collection bookkeeping shared by the file and
// user stores: the in-flight flags, the last error and the generation
// counter that disciplines out-of-order settlement. A settle whose
// generation predates an already-applied one is discarded, so a slow list
// refresh cannot clobber the result of a faster, newer mutation.
type tracker struct {
	mu       sync.Mutex
	loading  bool
	mutating bool
	lastErr  string
	nextGen  uint64
	applied  uint64
}

// begin starts an operation: sets the in-flight flag, clears the previous
// error and hands out this operation's generation number.
func (t *tracker) begin(mutating bool) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mutating {
		t.mutating = true
	} else {
		t.loading = true
	}
	t.lastErr = ""
	t.nextGen++
	return t.nextGen
}

// settle finishes an operation. The in-flight flag always clears, but a
// canceled operation touches nothing else, a failed one only records the
// error, and a stale success (older generation than one already applied)
// is dropped without calling apply.
func (t *tracker) settle(ctx context.Context, gen uint64, mutating bool, opErr error, apply func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if mutating {
		t.mutating = false
	} else {
		t.loading = false
	}

	if opErr != nil {
		if errors.Is(opErr, context.Canceled) || errors.Is(opErr, context.DeadlineExceeded) || ctx.Err() != nil {
			return opErr
		}
		t.lastErr = opErr.Error()
		return opErr
	}

	if gen < t.applied {
		return nil
	}
	t.applied = gen
	if apply != nil {
		apply()
	}
	return nil
}

func (t *tracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

func (t *tracker) Mutating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mutating
}

func (t *tracker) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *tracker) ClearError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErr = ""
}

func (t *tracker) setError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErr = msg
}
