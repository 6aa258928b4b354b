package agency

import (
	"errors"
	"fmt"

	"github.com/bft-labs/lottery/internal/codec"
	"github.com/bft-labs/lottery/internal/domain"
)

// ErrBetTooLarge is returned when a single bet cannot fit in any batch.
var ErrBetTooLarge = errors.New("agency: bet does not fit in a message")

// Batcher groups bets into BATCH messages bounded by a bet count and an
// encoded size.
type Batcher struct {
	maxBets     int
	maxBytes    int
	bets        []domain.Bet
	recordBytes int
}

// NewBatcher creates a batcher. maxBytes bounds the encoded BATCH message;
// zero disables the size bound.
func NewBatcher(maxBets, maxBytes int) *Batcher {
	if maxBets < 1 {
		maxBets = 1
	}
	return &Batcher{maxBets: maxBets, maxBytes: maxBytes}
}

// Add appends bet to the pending batch. It returns full=true without adding
// when the pending batch must be sent first to make room.
func (b *Batcher) Add(bet domain.Bet) (full bool, err error) {
	n := len(codec.EncodeRecord(bet))

	if b.maxBytes > 0 && n+codec.BatchOverhead(1) > b.maxBytes {
		return false, fmt.Errorf("%w: document %s needs %d bytes, limit %d",
			ErrBetTooLarge, bet.Document, n+codec.BatchOverhead(1), b.maxBytes)
	}
	if len(b.bets) >= b.maxBets {
		return true, nil
	}
	if b.maxBytes > 0 && b.recordBytes+n+codec.BatchOverhead(len(b.bets)+1) > b.maxBytes {
		return true, nil
	}

	b.bets = append(b.bets, bet)
	b.recordBytes += n
	return false, nil
}

// Bets returns the pending batch.
func (b *Batcher) Bets() []domain.Bet {
	return b.bets
}

// Size returns the encoded size of the pending batch.
func (b *Batcher) Size() int {
	if len(b.bets) == 0 {
		return 0
	}
	return b.recordBytes + codec.BatchOverhead(len(b.bets))
}

// HasPending returns true if there are bets waiting to be sent.
func (b *Batcher) HasPending() bool {
	return len(b.bets) > 0
}

// Reset clears the pending batch.
func (b *Batcher) Reset() {
	b.bets = nil
	b.recordBytes = 0
}

// Split groups bets into batches in order.
func Split(bets []domain.Bet, maxBets, maxBytes int) ([][]domain.Bet, error) {
	b := NewBatcher(maxBets, maxBytes)
	var out [][]domain.Bet
	for _, bet := range bets {
		full, err := b.Add(bet)
		if err != nil {
			return nil, err
		}
		if full {
			out = append(out, b.Bets())
			b.Reset()
			if _, err := b.Add(bet); err != nil {
				return nil, err
			}
		}
	}
	if b.HasPending() {
		out = append(out, b.Bets())
	}
	return out, nil
}
