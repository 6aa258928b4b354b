// Package memory provides an in-process bet store.
package memory

import (
	"context"
	"sync"

	"github.com/bft-labs/lottery/internal/domain"
)

// Store keeps bets in memory. It is safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	bets          []domain.Bet
	winningNumber int
}

// NewStore creates an empty store.
func NewStore(winningNumber int) *Store {
	return &Store{winningNumber: winningNumber}
}

// Append implements ports.BetStore.
func (s *Store) Append(ctx context.Context, bets []domain.Bet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets = append(s.bets, bets...)
	return nil
}

// WinnersForAgency implements ports.BetStore.
func (s *Store) WinnersForAgency(ctx context.Context, agency int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	winners := []string{}
	for _, b := range s.bets {
		if b.Agency == agency && b.Wins(s.winningNumber) {
			winners = append(winners, b.Document)
		}
	}
	return winners, nil
}

// Len returns the number of stored bets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bets)
}

// Bets returns a copy of every stored bet in insertion order.
func (s *Store) Bets() []domain.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Bet(nil), s.bets...)
}
