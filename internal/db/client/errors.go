package client

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/0xataru/dfox/internal/db/dberr"
)

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkFailure(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isTLSFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tls") || strings.Contains(msg, "ssl") || strings.Contains(msg, "x509")
}

// connectFallback classifies connect errors no driver-specific rule matched
func connectFallback(err error) error {
	switch {
	case isTimeout(err):
		return dberr.NewConnectError(dberr.ConnectTimeout, err)
	case isNetworkFailure(err):
		return dberr.NewConnectError(dberr.Unreachable, err)
	case isTLSFailure(err):
		return dberr.NewConnectError(dberr.ProtocolMismatch, err)
	default:
		return dberr.NewConnectError(dberr.Unreachable, err)
	}
}

// queryFallback classifies query errors no driver-specific rule matched
func queryFallback(err error) error {
	var qe *dberr.QueryError
	switch {
	case errors.As(err, &qe):
		return qe
	case errors.Is(err, context.Canceled):
		return &dberr.QueryError{Kind: dberr.Other, Message: "query canceled", Err: err}
	case isTimeout(err):
		return dberr.NewQueryError(dberr.QueryTimeout, err)
	case isNetworkFailure(err):
		return dberr.NewQueryError(dberr.ConnectionLost, err)
	default:
		return dberr.NewQueryError(dberr.Other, err)
	}
}

// reconnectError maps a failed reconnect during UseDatabase onto the query
// taxonomy, since the caller is on an established session.
func reconnectError(err error) error {
	kind, ok := dberr.ConnectKindOf(err)
	if !ok {
		return queryFallback(err)
	}
	switch kind {
	case dberr.AuthRejected:
		return dberr.NewQueryError(dberr.Permission, err)
	case dberr.ConnectTimeout:
		return dberr.NewQueryError(dberr.QueryTimeout, err)
	case dberr.Unreachable:
		return dberr.NewQueryError(dberr.ConnectionLost, err)
	default:
		return dberr.NewQueryError(dberr.Other, err)
	}
}
