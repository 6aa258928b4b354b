package ports

import (
	"context"

	"github.com/bft-labs/lottery/internal/domain"
)

// BetStore persists bets and answers winner lookups.
// Implementations are not required to be safe for concurrent use; the
// application serializes every call through a single lock.
type BetStore interface {
	// Append persists all bets of one batch.
	// Implementations should not leave a partial batch behind on error
	// when the backend allows it.
	Append(ctx context.Context, bets []domain.Bet) error

	// WinnersForAgency returns the documents of every stored bet of the
	// given agency that matches the winning number, in insertion order.
	// Two calls with no Append in between return identical results.
	WinnersForAgency(ctx context.Context, agency int) ([]string, error)
}
