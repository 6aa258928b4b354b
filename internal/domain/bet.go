package domain

import "time"

// BirthdateLayout is the ISO calendar date format used on the wire and in storage.
const BirthdateLayout = "2006-01-02"

// DefaultWinningNumber is the number drawn in the simulated contest.
const DefaultWinningNumber = 7574

// Bet represents a single lottery bet placed through an agency.
// A Bet is immutable once parsed.
type Bet struct {
	// Agency is the ID of the agency that took the bet (1..N)
	Agency int

	FirstName string
	LastName  string

	// Document is the gambler's identity document, reported back to
	// agencies as the winner identifier
	Document string

	Birthdate time.Time

	// Number is the gambled number
	Number int
}

// Wins reports whether the bet matches the drawn number.
func (b Bet) Wins(winningNumber int) bool {
	return b.Number == winningNumber
}

// BetRecord is the flat representation of a Bet used by storage adapters
// that serialize to JSON.
type BetRecord struct {
	Agency    int    `json:"agency"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Document  string `json:"document"`
	Birthdate string `json:"birthdate"`
	Number    int    `json:"number"`
}

// ToRecord converts a Bet to its serializable form.
func (b Bet) ToRecord() BetRecord {
	return BetRecord{
		Agency:    b.Agency,
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Document:  b.Document,
		Birthdate: b.Birthdate.Format(BirthdateLayout),
		Number:    b.Number,
	}
}

// ToBet converts a BetRecord back to a Bet.
func (r BetRecord) ToBet() (Bet, error) {
	birth, err := time.Parse(BirthdateLayout, r.Birthdate)
	if err != nil {
		return Bet{}, err
	}
	return Bet{
		Agency:    r.Agency,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Document:  r.Document,
		Birthdate: birth,
		Number:    r.Number,
	}, nil
}
