// Package agency implements the agency side of the protocol: it reads bets,
// ships them to the server in batches and retrieves the agency's winners.
package agency

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	logadapter "github.com/bft-labs/lottery/internal/adapters/log"
	"github.com/bft-labs/lottery/internal/codec"
	"github.com/bft-labs/lottery/internal/domain"
	"github.com/bft-labs/lottery/internal/frame"
	"github.com/bft-labs/lottery/internal/ports"
)

// Default client configuration values.
const (
	DefaultBatchSize       = 100
	DefaultMaxMessageBytes = 8 * 1024
	DefaultDialTimeout     = 5 * time.Second
	DefaultConnectAttempts = 5
)

// ErrBatchRejected is returned when the server answers ERROR to a batch.
var ErrBatchRejected = errors.New("agency: batch rejected by server")

// Config holds the agency client settings.
type Config struct {
	ServerAddr      string
	Agency          int
	BatchSize       int
	MaxMessageBytes int
	LengthBytes     int
	DialTimeout     time.Duration
	ConnectAttempts int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration

	// ContinueOnReject keeps sending after a rejected batch instead of
	// aborting the run.
	ContinueOnReject bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("%w: server address is required", domain.ErrInvalidConfig)
	}
	if c.Agency < 1 {
		return fmt.Errorf("%w: agency must be >= 1", domain.ErrInvalidConfig)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be >= 1", domain.ErrInvalidConfig)
	}
	if c.MaxMessageBytes < 0 {
		return fmt.Errorf("%w: max message bytes must be >= 0", domain.ErrInvalidConfig)
	}
	return nil
}

// Result summarizes a client run.
type Result struct {
	BatchesSent     int
	BatchesRejected int
	BetsSent        int
	Winners         []string
}

// Client runs one agency's session against the server.
type Client struct {
	cfg    Config
	logger ports.Logger
	dialer net.Dialer
}

// NewClient creates a client. A nil logger discards output.
func NewClient(cfg Config, logger ports.Logger) *Client {
	if logger == nil {
		logger = logadapter.NewNoopLogger()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = DefaultConnectAttempts
	}
	if cfg.LengthBytes <= 0 {
		cfg.LengthBytes = frame.DefaultLengthBytes
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

// Run sends bets, announces completion and blocks until the server
// returns this agency's winners.
func (c *Client) Run(ctx context.Context, bets []domain.Bet) (Result, error) {
	var res Result
	if err := c.cfg.Validate(); err != nil {
		return res, err
	}

	maxBytes := c.cfg.MaxMessageBytes
	if limit := frame.MaxPayloadFor(c.cfg.LengthBytes); maxBytes == 0 || maxBytes > limit {
		maxBytes = limit
	}
	batches, err := Split(bets, c.cfg.BatchSize, maxBytes)
	if err != nil {
		return res, err
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return res, err
	}
	defer conn.Close()

	ch := frame.New(conn, ctx.Done(), frame.WithLengthBytes(c.cfg.LengthBytes))

	for i, batch := range batches {
		if err := c.sendBatch(ch, batch); err != nil {
			if !errors.Is(err, ErrBatchRejected) || !c.cfg.ContinueOnReject {
				return res, fmt.Errorf("batch %d: %w", i+1, err)
			}
			res.BatchesRejected++
			continue
		}
		res.BatchesSent++
		res.BetsSent += len(batch)
	}

	if err := ch.Send(codec.EncodeFin(c.cfg.Agency)); err != nil {
		return res, fmt.Errorf("send FIN: %w", err)
	}
	c.logger.Info("all bets sent",
		ports.Int("agency", c.cfg.Agency),
		ports.Int("batches", res.BatchesSent),
		ports.Int("bets", res.BetsSent),
	)

	winners, err := c.queryWinners(ch)
	if err != nil {
		return res, err
	}
	res.Winners = winners
	c.logger.Info("winners received",
		ports.String("action", "consulta_ganadores"),
		ports.Int("agency", c.cfg.Agency),
		ports.Int("cant_ganadores", len(winners)),
	)
	return res, nil
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	back := newBackoff(c.cfg.BackoffInitial, c.cfg.BackoffMax)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.ServerAddr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("connect failed",
			ports.String("addr", c.cfg.ServerAddr),
			ports.Int("attempt", attempt),
			ports.Duration("retry_in", back.Current()),
			ports.Err(err),
		)
		if attempt == c.cfg.ConnectAttempts {
			break
		}
		if err := back.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("connect to %s: %w", c.cfg.ServerAddr, lastErr)
}

func (c *Client) sendBatch(ch *frame.Channel, bets []domain.Bet) error {
	if err := ch.Send(codec.EncodeBatch(bets)); err != nil {
		return err
	}
	reply, err := ch.Receive()
	if err != nil {
		return err
	}

	switch string(reply) {
	case codec.ReplySuccess:
		c.logger.Debug("batch accepted",
			ports.String("action", "apuesta_enviada"),
			ports.Int("bets", len(bets)),
		)
		return nil
	case codec.ReplyError:
		c.logger.Error("batch rejected",
			ports.String("action", "apuesta_enviada"),
			ports.Int("bets", len(bets)),
		)
		return ErrBatchRejected
	default:
		return fmt.Errorf("%w: unexpected reply %q", domain.ErrMalformedMessage, strings.TrimSpace(string(reply)))
	}
}

func (c *Client) queryWinners(ch *frame.Channel) ([]string, error) {
	if err := ch.Send(codec.EncodeWinnersQuery(c.cfg.Agency)); err != nil {
		return nil, fmt.Errorf("send winners query: %w", err)
	}
	reply, err := ch.Receive()
	if err != nil {
		return nil, fmt.Errorf("receive winners: %w", err)
	}
	if string(reply) == codec.ReplyError {
		return nil, fmt.Errorf("winners query rejected for agency %d", c.cfg.Agency)
	}
	return codec.ParseWinners(reply)
}
