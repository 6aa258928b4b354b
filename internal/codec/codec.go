// Package codec converts between frame payloads and protocol messages.
//
// Payloads are UTF-8 text of the form MSGTYPE,body. Bet records are
// colon-separated lists of comma-separated KEY=VALUE pairs.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/bft-labs/lottery/internal/domain"
)

// MessageType identifies the kind of protocol message.
type MessageType string

const (
	TypeBatch   MessageType = "BATCH"
	TypeFin     MessageType = "FIN"
	TypeWinners MessageType = "GANADORES"
)

// Replies sent by the server.
const (
	ReplySuccess = "EXITO\n"
	ReplyError   = "ERROR\n"
)

// Message is a decoded payload.
type Message struct {
	Type MessageType
	Body string
}

// Decode strips trailing whitespace from payload and splits it into the
// message type and body. Unknown types return domain.ErrUnrecognizedMessage.
func Decode(payload []byte) (Message, error) {
	text := strings.TrimRightFunc(string(payload), unicode.IsSpace)
	kind, body, _ := strings.Cut(text, ",")

	switch t := MessageType(kind); t {
	case TypeBatch, TypeFin, TypeWinners:
		return Message{Type: t, Body: body}, nil
	default:
		return Message{}, fmt.Errorf("%w: %q", domain.ErrUnrecognizedMessage, kind)
	}
}

// ParseBatch splits a BATCH body "<declaredCount>,<records>" into the
// records section and the declared count.
func ParseBatch(header string) (string, int, error) {
	rawSize, records, ok := strings.Cut(header, ",")
	if !ok {
		return "", 0, fmt.Errorf("%w: missing batch size separator", ErrMalformedBatch)
	}
	size, err := strconv.Atoi(strings.TrimSpace(rawSize))
	if err != nil || size < 0 {
		return "", 0, fmt.Errorf("%w: invalid batch size %q", ErrMalformedBatch, rawSize)
	}
	return records, size, nil
}

// ParseBatchMessage parses a full BATCH body into a validated Batch.
func ParseBatchMessage(body string) (domain.Batch, error) {
	records, size, err := ParseBatch(body)
	if err != nil {
		return domain.Batch{Declared: size}, err
	}
	bets, err := ParseRecords(records, size)
	if err != nil {
		return domain.Batch{Declared: size}, err
	}
	return domain.Batch{Declared: size, Bets: bets}, nil
}

// ParseAgency parses an "AGENCIA=<id>" body as sent with FIN and GANADORES.
func ParseAgency(body string) (int, error) {
	pairs, err := parsePairs(body)
	if err != nil {
		return 0, err
	}
	raw, ok := pairs[KeyAgency]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, KeyAgency)
	}
	return parseNonNegative(KeyAgency, raw)
}

// FormatWinners renders "<count>,<doc1>,...,<docN>\n". Zero winners
// renders "0,\n".
func FormatWinners(documents []string) []byte {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(documents)))
	b.WriteByte(',')
	b.WriteString(strings.Join(documents, ","))
	b.WriteByte('\n')
	return []byte(b.String())
}

// ParseWinners parses a winners reply and checks the announced count.
func ParseWinners(payload []byte) ([]string, error) {
	text := strings.TrimRightFunc(string(payload), unicode.IsSpace)
	rawCount, rest, ok := strings.Cut(text, ",")
	if !ok {
		return nil, fmt.Errorf("%w: winners reply without separator", domain.ErrMalformedMessage)
	}
	count, err := strconv.Atoi(rawCount)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: invalid winners count %q", domain.ErrMalformedMessage, rawCount)
	}
	if count == 0 {
		return []string{}, nil
	}
	docs := strings.Split(rest, ",")
	if len(docs) != count {
		return nil, fmt.Errorf("%w: expected %d winners, got %d", domain.ErrMalformedMessage, count, len(docs))
	}
	return docs, nil
}

// EncodeFin renders the completion notice of an agency.
func EncodeFin(agency int) []byte {
	return []byte(fmt.Sprintf("%s,%s=%d\n", TypeFin, KeyAgency, agency))
}

// EncodeWinnersQuery renders the winners query of an agency.
func EncodeWinnersQuery(agency int) []byte {
	return []byte(fmt.Sprintf("%s,%s=%d\n", TypeWinners, KeyAgency, agency))
}

// EncodeBatch renders a BATCH message for the given bets.
func EncodeBatch(bets []domain.Bet) []byte {
	var b strings.Builder
	b.WriteString(string(TypeBatch))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(len(bets)))
	b.WriteByte(',')
	for i, bet := range bets {
		if i > 0 {
			b.WriteByte(recordSeparator)
		}
		b.WriteString(EncodeRecord(bet))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// BatchOverhead returns the encoded size of a BATCH message minus its
// records, for a batch of n records.
func BatchOverhead(n int) int {
	overhead := len(TypeBatch) + 1 + len(strconv.Itoa(n)) + 1 + 1
	if n > 1 {
		overhead += n - 1
	}
	return overhead
}
