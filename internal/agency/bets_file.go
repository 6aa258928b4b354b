package agency

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/lottery/internal/domain"
)

// betFields is the column count of a bets file row:
// first name, last name, document, birthdate, number.
const betFields = 5

// reservedChars cannot appear inside a field; they delimit the wire format.
const reservedChars = ",:=\n"

// SkippedRow describes a row that was not turned into a bet.
type SkippedRow struct {
	Line   int
	Reason string
}

// ReadBetsFile reads the bets file at path for agency.
func ReadBetsFile(path string, agency int) ([]domain.Bet, []SkippedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadBets(f, agency)
}

// ReadBets parses CSV rows into bets placed through agency. Rows that are
// malformed or carry reserved characters are skipped and reported.
func ReadBets(r io.Reader, agency int) ([]domain.Bet, []SkippedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		bets    []domain.Bet
		skipped []SkippedRow
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return bets, skipped, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, SkippedRow{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return nil, nil, err
		}

		line, _ := reader.FieldPos(0)
		bet, err := parseRow(row, agency)
		if err != nil {
			skipped = append(skipped, SkippedRow{Line: line, Reason: err.Error()})
			continue
		}
		bets = append(bets, bet)
	}
}

func parseRow(row []string, agency int) (domain.Bet, error) {
	if len(row) != betFields {
		return domain.Bet{}, fmt.Errorf("expected %d fields, got %d", betFields, len(row))
	}
	for i, field := range row {
		row[i] = strings.TrimSpace(field)
		if row[i] == "" {
			return domain.Bet{}, fmt.Errorf("field %d is empty", i+1)
		}
		if strings.ContainsAny(row[i], reservedChars) {
			return domain.Bet{}, fmt.Errorf("field %d contains a reserved character", i+1)
		}
	}

	birth, err := time.Parse(domain.BirthdateLayout, row[3])
	if err != nil {
		return domain.Bet{}, fmt.Errorf("birthdate: %w", err)
	}
	number, err := strconv.Atoi(row[4])
	if err != nil || number < 0 {
		return domain.Bet{}, fmt.Errorf("number %q is not a non-negative integer", row[4])
	}

	return domain.Bet{
		Agency:    agency,
		FirstName: row[0],
		LastName:  row[1],
		Document:  row[2],
		Birthdate: birth,
		Number:    number,
	}, nil
}
