package ports

import "time"

// Logger is the structured logger used by the server, its sessions and
// the agency client. Protocol events carry an "action" field naming the
// step (apuesta_recibida, sorteo, consulta_ganadores) so logs of the
// server and of each agency can be correlated.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// String returns a string field, e.g. the session id or the action.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int returns an int field, e.g. an agency number or a bet count.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err returns the error field. Rejected batches and failed sessions log
// their cause through it.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
