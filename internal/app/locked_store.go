package app

import (
	"context"
	"sync"

	"github.com/bft-labs/lottery/internal/domain"
	"github.com/bft-labs/lottery/internal/ports"
)

// LockedStore serializes every call into the wrapped store. Appends and
// winner lookups never interleave, so a lookup sees a consistent snapshot
// of everything appended before it.
type LockedStore struct {
	mu    sync.Mutex
	store ports.BetStore
}

// NewLockedStore wraps store.
func NewLockedStore(store ports.BetStore) *LockedStore {
	return &LockedStore{store: store}
}

// Append implements ports.BetStore.
func (s *LockedStore) Append(ctx context.Context, bets []domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Append(ctx, bets)
}

// WinnersForAgency implements ports.BetStore.
func (s *LockedStore) WinnersForAgency(ctx context.Context, agency int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.WinnersForAgency(ctx, agency)
}

// AppendIf calls admit and, when it returns nil, appends bets. Both run
// under the store lock, so the admission decision still holds when the
// bets land.
func (s *LockedStore) AppendIf(ctx context.Context, bets []domain.Bet, admit func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := admit(); err != nil {
		return err
	}
	return s.store.Append(ctx, bets)
}

// Exclusive runs fn under the store lock. No append or lookup overlaps it.
func (s *LockedStore) Exclusive(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
