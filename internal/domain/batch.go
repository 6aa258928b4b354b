package domain

// Batch is the set of bets carried by one BATCH message.
// It maintains the invariant that len(Bets) == Declared once accepted.
type Batch struct {
	// Declared is the record count announced by the agency.
	Declared int

	// Bets holds the parsed records in wire order.
	Bets []Bet
}

// Size returns the number of parsed bets.
func (b Batch) Size() int {
	return len(b.Bets)
}

// Complete reports whether the parsed count matches the declared count.
func (b Batch) Complete() bool {
	return b.Declared == len(b.Bets)
}

// Agencies returns the distinct agency IDs present in the batch, in order
// of first appearance.
func (b Batch) Agencies() []int {
	seen := make(map[int]struct{}, 1)
	out := make([]int, 0, 1)
	for _, bet := range b.Bets {
		if _, ok := seen[bet.Agency]; ok {
			continue
		}
		seen[bet.Agency] = struct{}{}
		out = append(out, bet.Agency)
	}
	return out
}
