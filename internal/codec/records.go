package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/lottery/internal/domain"
)

// Record keys.
const (
	KeyAgency    = "AGENCIA"
	KeyFirstName = "NOMBRE"
	KeyLastName  = "APELLIDO"
	KeyDocument  = "DOCUMENTO"
	KeyBirthdate = "NACIMIENTO"
	KeyNumber    = "NUMERO"
)

const (
	recordSeparator = ':'
	pairSeparator   = ","
	kvSeparator     = "="
)

// RequiredKeys lists the keys every bet record must carry.
var RequiredKeys = []string{KeyAgency, KeyFirstName, KeyLastName, KeyDocument, KeyBirthdate, KeyNumber}

// Record and batch validation errors. All of them wrap
// domain.ErrMalformedMessage.
var (
	ErrMalformedPair     = fmt.Errorf("%w: malformed key-value pair", domain.ErrMalformedMessage)
	ErrEmptyField        = fmt.Errorf("%w: empty field", domain.ErrMalformedMessage)
	ErrDuplicateKey      = fmt.Errorf("%w: duplicate key", domain.ErrMalformedMessage)
	ErrMissingField      = fmt.Errorf("%w: missing field", domain.ErrMalformedMessage)
	ErrInvalidField      = fmt.Errorf("%w: invalid field value", domain.ErrMalformedMessage)
	ErrEmptyBatch        = fmt.Errorf("%w: empty batch", domain.ErrMalformedMessage)
	ErrMalformedBatch    = fmt.Errorf("%w: malformed batch header", domain.ErrMalformedMessage)
	ErrBatchSizeMismatch = fmt.Errorf("%w: batch size mismatch", domain.ErrMalformedMessage)
)

// ParseRecords parses the records section of a batch. Any record error or a
// count different from expectedSize rejects the whole batch.
func ParseRecords(body string, expectedSize int) ([]domain.Bet, error) {
	if body == "" {
		return nil, ErrEmptyBatch
	}

	records := strings.Split(body, string(recordSeparator))
	bets := make([]domain.Bet, 0, len(records))
	for i, record := range records {
		bet, err := ParseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		bets = append(bets, bet)
	}

	if len(bets) != expectedSize {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrBatchSizeMismatch, expectedSize, len(bets))
	}
	return bets, nil
}

// ParseRecord parses one KEY=VALUE,... record into a Bet.
func ParseRecord(record string) (domain.Bet, error) {
	data, err := parsePairs(record)
	if err != nil {
		return domain.Bet{}, err
	}
	for _, key := range RequiredKeys {
		if _, ok := data[key]; !ok {
			return domain.Bet{}, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}

	agency, err := parseNonNegative(KeyAgency, data[KeyAgency])
	if err != nil {
		return domain.Bet{}, err
	}
	number, err := parseNonNegative(KeyNumber, data[KeyNumber])
	if err != nil {
		return domain.Bet{}, err
	}
	birth, err := time.Parse(domain.BirthdateLayout, data[KeyBirthdate])
	if err != nil {
		return domain.Bet{}, fmt.Errorf("%w: %s=%q", ErrInvalidField, KeyBirthdate, data[KeyBirthdate])
	}

	return domain.Bet{
		Agency:    agency,
		FirstName: data[KeyFirstName],
		LastName:  data[KeyLastName],
		Document:  data[KeyDocument],
		Birthdate: birth,
		Number:    number,
	}, nil
}

// EncodeRecord renders a bet as a wire record.
func EncodeRecord(b domain.Bet) string {
	return fmt.Sprintf("%s=%d,%s=%s,%s=%s,%s=%s,%s=%s,%s=%d",
		KeyAgency, b.Agency,
		KeyFirstName, b.FirstName,
		KeyLastName, b.LastName,
		KeyDocument, b.Document,
		KeyBirthdate, b.Birthdate.Format(domain.BirthdateLayout),
		KeyNumber, b.Number,
	)
}

// parsePairs splits a record into its trimmed key-value pairs. Unknown keys
// are kept; required keys are checked by the caller.
func parsePairs(record string) (map[string]string, error) {
	data := make(map[string]string, len(RequiredKeys))
	for _, pair := range strings.Split(record, pairSeparator) {
		if strings.Count(pair, kvSeparator) != 1 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPair, pair)
		}
		k, v, _ := strings.Cut(pair, kvSeparator)
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)

		if k == "" {
			return nil, fmt.Errorf("%w: empty key in %q", ErrEmptyField, pair)
		}
		if v == "" {
			return nil, fmt.Errorf("%w: empty value for %s", ErrEmptyField, k)
		}
		if _, dup := data[k]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, k)
		}
		data[k] = v
	}
	return data, nil
}

func parseNonNegative(key, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidField, key, raw)
	}
	return n, nil
}
