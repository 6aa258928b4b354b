package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/lottery/internal/domain"
)

// Barrier releases winner queries once every agency has sent FIN.
// It is single use: once released it stays released for the rest of the run.
type Barrier struct {
	mu       sync.Mutex
	total    int
	finished map[int]struct{}

	allDone  chan struct{}
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewBarrier creates a barrier for agencies 1..total.
func NewBarrier(total int) *Barrier {
	b := &Barrier{
		total:    total,
		finished: make(map[int]struct{}, total),
		allDone:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}
	if total <= 0 {
		close(b.allDone)
	}
	return b
}

// SignalFinished records that agency has sent FIN. Repeated calls for the
// same agency are ignored and return false.
func (b *Barrier) SignalFinished(agency int) (bool, error) {
	if agency < 1 || agency > b.total {
		return false, fmt.Errorf("%w: %d not in 1..%d", domain.ErrUnknownAgency, agency, b.total)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.finished[agency]; ok {
		return false, nil
	}
	b.finished[agency] = struct{}{}
	if len(b.finished) == b.total {
		close(b.allDone)
	}
	return true, nil
}

// AwaitAll blocks until every agency has finished. It returns
// domain.ErrShuttingDown if Shutdown is called or ctx ends first.
func (b *Barrier) AwaitAll(ctx context.Context) error {
	// Completion wins over a simultaneous shutdown.
	select {
	case <-b.allDone:
		return nil
	default:
	}

	select {
	case <-b.allDone:
		return nil
	case <-b.shutdown:
		return domain.ErrShuttingDown
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrShuttingDown, ctx.Err())
	}
}

// AllFinished reports whether every agency has sent FIN.
func (b *Barrier) AllFinished() bool {
	select {
	case <-b.allDone:
		return true
	default:
		return false
	}
}

// Finished reports whether agency has sent FIN.
func (b *Barrier) Finished(agency int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.finished[agency]
	return ok
}

// Count returns the number of agencies that have sent FIN.
func (b *Barrier) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.finished)
}

// Total returns the number of agencies the barrier waits for.
func (b *Barrier) Total() int {
	return b.total
}

// Shutdown releases every current and future AwaitAll call that has not
// already completed.
func (b *Barrier) Shutdown() {
	b.stopOnce.Do(func() { close(b.shutdown) })
}
