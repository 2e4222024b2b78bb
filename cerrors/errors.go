// Package cerrors defines the typed error kinds used across the node's
// core packages, in the klaytn/go-ethereum tradition of wrapping sentinel
// causes with github.com/pkg/errors rather than hand-rolled stack traces.
package cerrors

import "github.com/pkg/errors"

// Kind classifies an Error so callers can branch on failure category
// without string-matching messages.
type Kind int

const (
	// KindOther is returned by Unwrap-only helpers when no Error wraps
	// the cause.
	KindOther Kind = iota
	KindInvalidSignature
	KindInvalidUTXO
	KindStaleEpoch
	KindCouncilRejected
	KindBroadcastRejected
	KindJoinRejected
	KindTransportError
	KindStorageError
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSignature:
		return "InvalidSignature"
	case KindInvalidUTXO:
		return "InvalidUtxo"
	case KindStaleEpoch:
		return "StaleEpoch"
	case KindCouncilRejected:
		return "CouncilRejected"
	case KindBroadcastRejected:
		return "BroadcastRejected"
	case KindJoinRejected:
		return "JoinRejected"
	case KindTransportError:
		return "TransportError"
	case KindStorageError:
		return "StorageError"
	case KindInternal:
		return "InternalError"
	default:
		return "Other"
	}
}

// Error wraps an underlying cause with the operation that produced it and
// the Kind a caller should dispatch on.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error, attaching a stack via pkg/errors when Err does not
// already carry one.
func E(op string, kind Kind, err error) *Error {
	if err != nil {
		if _, ok := err.(interface{ StackTrace() errors.StackTrace }); !ok {
			err = errors.WithStack(err)
		}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
