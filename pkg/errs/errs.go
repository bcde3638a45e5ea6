// Package errs defines the error taxonomy shared by the object store,
// the wire protocol, and the porcelain layers. Callers branch on Kind
// rather than on error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by what the caller can do about it.
type Kind int

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown Kind = iota
	// KindNotFound reports a missing object, ref, or remote resource.
	KindNotFound
	// KindCorrupt reports stored or received data whose digest or framing
	// does not match its content.
	KindCorrupt
	// KindProtocol reports malformed wire data from a peer.
	KindProtocol
	// KindUnsupported reports a recognized but unimplemented construct,
	// such as a delta-encoded pack entry.
	KindUnsupported
	// KindAuth reports rejected or missing credentials.
	KindAuth
	// KindNetwork reports transport-level failure (dial, timeout, 5xx).
	KindNetwork
	// KindConflict reports a merge that requires human resolution.
	KindConflict
	// KindIntegrity reports a violated structural invariant, such as a
	// cycle in what must be a DAG.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindCorrupt:
		return "corrupt"
	case KindProtocol:
		return "protocol"
	case KindUnsupported:
		return "unsupported"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a formatted message.
func New(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil err yields nil.
func Wrap(k Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the classification of err, walking the wrap chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind k anywhere in its chain.
func Is(err error, k Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == k {
			return true
		}
		err = e.Err
	}
	return false
}
