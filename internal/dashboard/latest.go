// Package dashboard holds the client-side view logic: the login gate, the
// ledger, category and investment views, and chart data shaping.
package dashboard

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by a batch that a newer batch replaced before it
// could commit.
var ErrSuperseded = errors.New("superseded by a newer request")

// Latest serializes overlapping batches: starting a batch cancels the one in
// flight, and only the most recently started batch may commit.
type Latest struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Do runs load under a context that is cancelled when a newer batch starts.
// settle receives the result of load, under the lock, only when no newer
// batch was started; a superseded batch returns ErrSuperseded instead.
func (l *Latest) Do(ctx context.Context, load func(context.Context) error, settle func(error)) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	mine := l.seq
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	err := load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if mine != l.seq {
		return ErrSuperseded
	}
	cancel()
	l.cancel = nil
	settle(err)
	return err
}
