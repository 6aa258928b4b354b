package domain

import "errors"

// Domain errors represent error conditions in the lottery domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("lottery: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("lottery: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("lottery: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("lottery: invalid configuration")

	// ErrConnectionClosed is returned when the peer closed the connection.
	// It terminates the session that observed it and nothing else.
	ErrConnectionClosed = errors.New("lottery: connection closed")

	// ErrCancelled is returned by blocking I/O aborted by the shutdown signal.
	ErrCancelled = errors.New("lottery: cancelled")

	// ErrShuttingDown is returned by waits that were released by shutdown
	// instead of by the condition they were waiting for.
	ErrShuttingDown = errors.New("lottery: shutting down")

	// ErrMalformedMessage is the parent of every frame, key-value and batch
	// validation error. It is reported to the peer as ERROR. Only a bad
	// frame header also closes the connection.
	ErrMalformedMessage = errors.New("lottery: malformed message")

	// ErrUnrecognizedMessage is returned for unknown message types.
	// It is fatal to the session.
	ErrUnrecognizedMessage = errors.New("lottery: unrecognized message")

	// ErrUnknownAgency is returned for agency IDs outside 1..N.
	ErrUnknownAgency = errors.New("lottery: unknown agency")

	// ErrAgencyFinished is returned when an agency sends bets after FIN.
	ErrAgencyFinished = errors.New("lottery: agency already finished")
)
