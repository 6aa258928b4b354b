// Package frame implements the length-prefixed framing used on the wire.
//
// A frame is a fixed-width ASCII decimal length field (zero padded)
// immediately followed by that many payload bytes. The payload is opaque
// to this package.
package frame

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/bft-labs/lottery/internal/domain"
)

const (
	// DefaultLengthBytes is the width of the length field.
	DefaultLengthBytes = 6

	// DefaultPollInterval bounds how long a single read or write may block
	// before the shutdown signal is checked again.
	DefaultPollInterval = 250 * time.Millisecond
)

var (
	ErrMalformedFrame  = fmt.Errorf("%w: frame length is not a decimal number", domain.ErrMalformedMessage)
	ErrPayloadTooLarge = errors.New("frame: payload too large for length field")
)

// Stream is the byte stream a Channel frames. net.Conn satisfies it.
type Stream interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Option configures a Channel.
type Option func(*Channel)

// WithLengthBytes sets the width of the length field.
func WithLengthBytes(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.lengthBytes = n
		}
	}
}

// WithPollInterval sets the deadline applied to each read and write.
// Zero disables deadlines; the channel then only observes shutdown
// between I/O calls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Channel) {
		c.poll = d
	}
}

// Channel sends and receives whole frames over a Stream.
// Short reads and short writes are absorbed here; callers only ever see
// complete payloads. A Channel is not safe for concurrent Receive calls
// or concurrent Send calls.
type Channel struct {
	stream      Stream
	done        <-chan struct{}
	lengthBytes int
	maxPayload  int
	poll        time.Duration
}

// New wraps stream. Closing done aborts any blocked Send or Receive with
// domain.ErrCancelled; a nil done never cancels.
func New(stream Stream, done <-chan struct{}, opts ...Option) *Channel {
	c := &Channel{
		stream:      stream,
		done:        done,
		lengthBytes: DefaultLengthBytes,
		poll:        DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.maxPayload = MaxPayloadFor(c.lengthBytes)
	return c
}

// MaxPayload returns the largest payload the length field can describe.
func (c *Channel) MaxPayload() int {
	return c.maxPayload
}

// Receive blocks until one complete frame has been read and returns its
// payload.
func (c *Channel) Receive() ([]byte, error) {
	header := make([]byte, c.lengthBytes)
	if err := c.readFull(header); err != nil {
		return nil, err
	}

	length, err := decodeLength(header)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if err := c.readFull(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Send writes payload as one frame.
func (c *Channel) Send(payload []byte) error {
	if len(payload) > c.maxPayload {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), c.maxPayload)
	}

	buf := make([]byte, 0, c.lengthBytes+len(payload))
	buf = append(buf, EncodeLength(len(payload), c.lengthBytes)...)
	buf = append(buf, payload...)
	return c.writeFull(buf)
}

// readFull fills buf, re-checking the shutdown signal between reads.
func (c *Channel) readFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		if c.cancelled() {
			return domain.ErrCancelled
		}
		if c.poll > 0 {
			if err := c.stream.SetReadDeadline(time.Now().Add(c.poll)); err != nil {
				return fmt.Errorf("frame: set read deadline: %w", err)
			}
		}

		n, err := c.stream.Read(buf[read:])
		read += n

		switch {
		case err == nil && n == 0:
			return domain.ErrConnectionClosed
		case err == nil:
			continue
		case isTimeout(err):
			continue
		case errors.Is(err, io.EOF):
			if read == len(buf) {
				return nil
			}
			return domain.ErrConnectionClosed
		default:
			return fmt.Errorf("%w: %v", domain.ErrConnectionClosed, err)
		}
	}
	return nil
}

// writeFull writes all of buf, re-checking the shutdown signal between writes.
func (c *Channel) writeFull(buf []byte) error {
	written := 0
	for written < len(buf) {
		if c.cancelled() {
			return domain.ErrCancelled
		}
		if c.poll > 0 {
			if err := c.stream.SetWriteDeadline(time.Now().Add(c.poll)); err != nil {
				return fmt.Errorf("frame: set write deadline: %w", err)
			}
		}

		n, err := c.stream.Write(buf[written:])
		written += n

		switch {
		case err == nil && n == 0:
			return domain.ErrConnectionClosed
		case err == nil:
			continue
		case isTimeout(err):
			continue
		default:
			return fmt.Errorf("%w: %v", domain.ErrConnectionClosed, err)
		}
	}
	return nil
}

func (c *Channel) cancelled() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// EncodeLength renders n as a zero padded decimal of the given width.
func EncodeLength(n, width int) []byte {
	s := strconv.Itoa(n)
	out := make([]byte, 0, width)
	for i := len(s); i < width; i++ {
		out = append(out, '0')
	}
	return append(out, s...)
}

func decodeLength(header []byte) (int, error) {
	for _, b := range header {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformedFrame, header)
		}
	}
	n, err := strconv.ParseUint(string(header), 10, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedFrame, header)
	}
	return int(n), nil
}

// MaxPayloadFor returns the largest payload a length field of width digits
// can describe.
func MaxPayloadFor(width int) int {
	maxLen := 1
	for i := 0; i < width && maxLen < 1<<30; i++ {
		maxLen *= 10
	}
	if maxLen-1 > math.MaxInt32 {
		return math.MaxInt32
	}
	return maxLen - 1
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
