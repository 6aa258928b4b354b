package log

import "github.com/bft-labs/lottery/internal/ports"

// NoopLogger drops every line. The agency client falls back to it when
// no logger is given, and tests use it to keep output quiet.
type NoopLogger struct{}

func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(string, ...ports.Field) {}
func (NoopLogger) Info(string, ...ports.Field)  {}
func (NoopLogger) Warn(string, ...ports.Field)  {}
func (NoopLogger) Error(string, ...ports.Field) {}
