// Package logx builds the pslog loggers used across dfox. The terminal is
// owned by the UI, so loggers never default to stdout or stderr.
package logx

import (
	"context"
	"io"

	"pkt.systems/pslog"
)

// New returns a structured logger writing JSON lines to w
func New(w io.Writer, verbose bool) pslog.Logger {
	level := pslog.InfoLevel
	if verbose {
		level = pslog.DebugLevel
	}
	return pslog.NewWithOptions(w, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: level,
	})
}

// Discard returns a logger that drops everything
func Discard() pslog.Logger {
	return New(io.Discard, false)
}

// Or returns log, or a discard logger when log is nil
func Or(log pslog.Logger) pslog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}

// Ctx returns the logger bound to ctx
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithLogger attaches log to ctx
func WithLogger(ctx context.Context, log pslog.Logger) context.Context {
	return pslog.ContextWithLogger(ctx, log)
}
