// Package indexererr classifies the error kinds of spec §7 so callers can
// decide retry-in-place versus propagate-and-exit without string matching.
package indexererr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories spec §7 assigns distinct handling to.
type Kind int

const (
	// KindTransientUpstream covers connection-refused/timeout talking to
	// the rollup RPC or websocket endpoint: sleep and retry in place.
	KindTransientUpstream Kind = iota
	// KindDecode covers a malformed upstream payload: log and propagate,
	// causing the sync loop to exit (no safe skip exists).
	KindDecode
	// KindMissingReceipt covers a transaction receipt the upstream RPC
	// could not produce.
	KindMissingReceipt
	// KindMissingSystemLog covers a polyjuice receipt with no
	// PolyjuiceSystem log item.
	KindMissingSystemLog
	// KindPartialAccountData covers script args shorter than expected:
	// substitute the zero address, log, and continue.
	KindPartialAccountData
	// KindDatabase covers any Postgres failure: propagate.
	KindDatabase
	// KindWebSocket covers a subscription disconnect: reconnect after 3s.
	KindWebSocket
	// KindConfig covers an invalid configuration: fatal at startup.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransientUpstream:
		return "transient_upstream"
	case KindDecode:
		return "decode"
	case KindMissingReceipt:
		return "missing_receipt"
	case KindMissingSystemLog:
		return "missing_system_log"
	case KindPartialAccountData:
		return "partial_account_data"
	case KindDatabase:
		return "database"
	case KindWebSocket:
		return "websocket"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can switch on
// errors.As(err, *Error) instead of matching error strings.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause with the given Kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
