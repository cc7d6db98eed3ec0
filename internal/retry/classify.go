package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Action determines how to handle an error.
type Action int

const (
	ActionRetry Action = iota
	ActionStop
)

// Kind is a stable classification assigned at the boundary where an
// error is produced, so callers do not depend on message text.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindLogic
)

// Error carries a classification kind alongside the underlying cause.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string { return e.Cause.Error() }
func (e *Error) Unwrap() error { return e.Cause }

// NewNetworkError marks err as a transient connectivity failure.
func NewNetworkError(err error) *Error { return &Error{Kind: KindNetwork, Cause: err} }

// NewTimeoutError marks err as a transient timeout.
func NewTimeoutError(err error) *Error { return &Error{Kind: KindTimeout, Cause: err} }

// NewLogicError marks err as a validation or business-rule failure
// that must never be retried.
func NewLogicError(err error) *Error { return &Error{Kind: KindLogic, Cause: err} }

// Postgres SQLSTATE codes treated as transient: class 08 is connection
// exceptions, 57014 is query_canceled (statement timeout), 57P01 is
// admin_shutdown.
func transientPgCode(code string) bool {
	return strings.HasPrefix(code, "08") || code == "57014" || code == "57P01"
}

// Classify determines the action for a given error. Only failures that
// are plausibly "the network blipped" are retried; everything else
// stops immediately.
func Classify(err error) Action {
	if err == nil {
		return ActionStop
	}

	// Caller gave up; never retry past a cancellation.
	if errors.Is(err, context.Canceled) {
		return ActionStop
	}

	var kindErr *Error
	if errors.As(err, &kindErr) {
		switch kindErr.Kind {
		case KindNetwork, KindTimeout:
			return ActionRetry
		default:
			return ActionStop
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientPgCode(pgErr.Code) {
			return ActionRetry
		}
		return ActionStop
	}
	if pgconn.Timeout(err) {
		return ActionRetry
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ActionRetry
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return ActionRetry
	}

	// Legacy free-text signatures from clients that flatten their
	// errors to strings.
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "failed to fetch") ||
		strings.Contains(s, "http2 protocol error") ||
		strings.Contains(s, "networkerror") ||
		strings.Contains(s, "i/o timeout") {
		return ActionRetry
	}

	return ActionStop
}
