// Package errs defines the decode error taxonomy shared by every parser
// and the dispatch layer: kinds, not identifiers, so callers switch on
// Kind() rather than matching error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a decode failure.
type Kind int

const (
	// Truncated means the cursor reached the end of the buffer before an
	// expected field. Packet-fatal, never process-fatal.
	Truncated Kind = iota
	// UnsupportedVersion means the leading two bytes were not 1, 5, 9 or 10.
	UnsupportedVersion
	// Malformed means a set/flowset length was inconsistent with its
	// declared record stride, a variable-length field overran its set, or
	// a scope length was zero where fields were expected.
	Malformed
	// UnknownTemplate is never returned to the caller of Decode; it causes
	// the datagram to be deferred. Promoted to TemplateTimeout only after
	// the deferred bound elapses.
	UnknownTemplate
	// TemplateTimeout means a deferred datagram aged out of the queue
	// without ever seeing its template.
	TemplateTimeout
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case UnsupportedVersion:
		return "unsupported_version"
	case Malformed:
		return "malformed"
	case UnknownTemplate:
		return "unknown_template"
	case TemplateTimeout:
		return "template_timeout"
	default:
		return "unknown"
	}
}

// Error is the error type every parser and the dispatcher return. It
// always carries a Kind so callers can route on the taxonomy.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error of the given kind, optionally wrapping a cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
