package lottery

import (
	"github.com/bft-labs/lottery/internal/ports"
)

// Logger is the interface for structured logging.
type Logger = ports.Logger

// LogField represents a structured log field.
type LogField = ports.Field

// BetStore persists bets and answers winner queries.
type BetStore = ports.BetStore

// Option configures optional behavior of Lottery.
type Option func(*options)

type options struct {
	logger       ports.Logger
	store        ports.BetStore
	eventHandler EventHandler
}

func defaultOptions() options {
	return options{
		logger: &noopLogger{},
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore replaces the configured store backend.
// The caller keeps ownership of store; Stop does not close it.
func WithStore(store BetStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithEventHandler sets a handler for server events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// noopLogger discards all log messages.
type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...ports.Field) {}
func (noopLogger) Info(msg string, fields ...ports.Field)  {}
func (noopLogger) Warn(msg string, fields ...ports.Field)  {}
func (noopLogger) Error(msg string, fields ...ports.Field) {}
