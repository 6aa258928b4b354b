// Package fs provides the file-backed bet store.
package fs

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bft-labs/lottery/internal/domain"
)

// DefaultFileName is the name of the bets file inside the data directory.
const DefaultFileName = "bets.csv"

// CSVStore implements ports.BetStore as an append-only CSV file.
// It is not safe for concurrent use; the server serializes access.
type CSVStore struct {
	path          string
	winningNumber int
}

// NewCSVStore creates a store writing to DefaultFileName under dir.
func NewCSVStore(dir string, winningNumber int) *CSVStore {
	return &CSVStore{
		path:          filepath.Join(dir, DefaultFileName),
		winningNumber: winningNumber,
	}
}

// Path returns the full path to the bets file.
func (s *CSVStore) Path() string {
	return s.path
}

// Append writes bets to the end of the file. The batch is encoded up
// front and written in one call; if the write or sync fails the file is
// truncated back to its previous size so no part of the batch remains.
func (s *CSVStore) Append(ctx context.Context, bets []domain.Bet) error {
	if len(bets) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, b := range bets {
		if err := w.Write(toRow(b)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	offset := info.Size()

	if _, err := writeFile(f, buf.Bytes()); err != nil {
		return rollback(f, offset, err)
	}
	if err := f.Sync(); err != nil {
		return rollback(f, offset, err)
	}
	return f.Close()
}

// writeFile is replaced in tests to simulate short or failing writes.
var writeFile = func(f *os.File, p []byte) (int, error) {
	return f.Write(p)
}

func rollback(f *os.File, offset int64, cause error) error {
	if err := f.Truncate(offset); err != nil {
		cause = fmt.Errorf("%w (truncate to %d: %v)", cause, offset, err)
	}
	_ = f.Close()
	return cause
}

// WinnersForAgency scans the file and returns the documents of winning
// bets placed through agency, in insertion order.
func (s *CSVStore) WinnersForAgency(ctx context.Context, agency int) ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = rowFields

	winners := []string{}
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return winners, nil
		}
		if err != nil {
			return nil, err
		}
		bet, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		if bet.Agency == agency && bet.Wins(s.winningNumber) {
			winners = append(winners, bet.Document)
		}
	}
}

const rowFields = 6

func toRow(b domain.Bet) []string {
	return []string{
		strconv.Itoa(b.Agency),
		b.FirstName,
		b.LastName,
		b.Document,
		b.Birthdate.Format(domain.BirthdateLayout),
		strconv.Itoa(b.Number),
	}
}

func fromRow(row []string) (domain.Bet, error) {
	agency, err := strconv.Atoi(row[0])
	if err != nil {
		return domain.Bet{}, fmt.Errorf("agency: %w", err)
	}
	birth, err := time.Parse(domain.BirthdateLayout, row[4])
	if err != nil {
		return domain.Bet{}, fmt.Errorf("birthdate: %w", err)
	}
	number, err := strconv.Atoi(row[5])
	if err != nil {
		return domain.Bet{}, fmt.Errorf("number: %w", err)
	}
	return domain.Bet{
		Agency:    agency,
		FirstName: row[1],
		LastName:  row[2],
		Document:  row[3],
		Birthdate: birth,
		Number:    number,
	}, nil
}
