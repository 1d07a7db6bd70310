// Package dberr defines the engine-neutral errors every database client
// translates its driver errors into.
package dberr

import (
	"errors"
	"fmt"
)

// ConnectKind classifies a failed connection attempt
type ConnectKind int

const (
	Unreachable ConnectKind = iota
	AuthRejected
	ProtocolMismatch
	ConnectTimeout
)

func (k ConnectKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case AuthRejected:
		return "authentication rejected"
	case ProtocolMismatch:
		return "protocol mismatch"
	case ConnectTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// QueryKind classifies a failed operation on an established connection
type QueryKind int

const (
	Syntax QueryKind = iota
	Permission
	QueryTimeout
	ConnectionLost
	NotConnected
	Other
)

func (k QueryKind) String() string {
	switch k {
	case Syntax:
		return "syntax error"
	case Permission:
		return "permission denied"
	case QueryTimeout:
		return "timeout"
	case ConnectionLost:
		return "connection lost"
	case NotConnected:
		return "not connected"
	case Other:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectError is returned by connect operations
type ConnectError struct {
	Kind ConnectKind
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// QueryError is returned by every operation on a connected client
type QueryError struct {
	Kind    QueryKind
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ErrNotConnected is returned when no client is held by the session
var ErrNotConnected = &QueryError{Kind: NotConnected, Message: "not connected to a database"}

// NewConnectError wraps err with a connect kind
func NewConnectError(kind ConnectKind, err error) *ConnectError {
	return &ConnectError{Kind: kind, Err: err}
}

// NewQueryError wraps err with a query kind, using the driver message as text
func NewQueryError(kind QueryKind, err error) *QueryError {
	qe := &QueryError{Kind: kind, Err: err}
	if err != nil {
		qe.Message = err.Error()
	}
	return qe
}

// Errorf builds a QueryError from a format string
func Errorf(kind QueryKind, format string, args ...any) *QueryError {
	return &QueryError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// QueryKindOf extracts the kind of a QueryError in err's chain
func QueryKindOf(err error) (QueryKind, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind, true
	}
	return 0, false
}

// ConnectKindOf extracts the kind of a ConnectError in err's chain
func ConnectKindOf(err error) (ConnectKind, bool) {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// IsConnectionLost reports whether err means the session has no usable
// connection anymore and the user must reconnect.
func IsConnectionLost(err error) bool {
	kind, ok := QueryKindOf(err)
	return ok && (kind == ConnectionLost || kind == NotConnected)
}

// Title returns a short heading for an error overlay
func Title(err error) string {
	if kind, ok := ConnectKindOf(err); ok {
		return "Connection failed: " + kind.String()
	}
	if kind, ok := QueryKindOf(err); ok {
		switch kind {
		case Other:
			return "Query failed"
		default:
			return "Query failed: " + kind.String()
		}
	}
	return "Error"
}
