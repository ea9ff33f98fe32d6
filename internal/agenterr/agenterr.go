// Package agenterr enumerates the error kinds shared by every agentd
// service. Errors are never matched by string; callers switch on Code via
// errors.Is.
package agenterr

import "fmt"

// Code identifies one of the enumerated failure kinds a service can surface.
type Code int

const (
	_ Code = iota
	// WouldBlock signals a nonblocking operation that has no data/space
	// available yet; the caller should retry on the next event-loop edge.
	WouldBlock
	// EOF signals the peer closed its end of the stream.
	EOF
	// PacketBadSize signals a frame whose declared size disagrees with the
	// buffered bytes or exceeds a hard cap.
	PacketBadSize
	// UnexpectedDataType signals a typed-primitive frame whose type tag did
	// not match what the caller expected.
	UnexpectedDataType
	// OutOfMemory signals an allocation the process refuses to perform,
	// e.g. a declared frame size that would over-commit the buffer.
	OutOfMemory
	// AuthFailure signals a MAC mismatch on an authenticated packet frame.
	AuthFailure
	// Unauthorized signals an unknown entity or a capability bit that was
	// not granted for the requested operation.
	Unauthorized
	// MalformedRequest signals a request whose fixed fields fail a
	// structural check (wrong request id, nonzero offset where zero is
	// required, wrong protocol version, ...).
	MalformedRequest
	// NotFound signals a lookup against a record that does not exist.
	NotFound
	// CryptoFailure signals a key-derivation or cipher operation failure
	// distinct from an authentication mismatch.
	CryptoFailure
	// IPCWriteFailure signals a write to a peer socket failed at the OS
	// level (broken pipe, ECONNRESET, ...).
	IPCWriteFailure
	// RequestPacketInvalidSize signals a data-service request shorter than
	// its method's fixed header.
	RequestPacketInvalidSize
	// ChildContextBadIndex signals a child index outside [0, MAX).
	ChildContextBadIndex
	// ChildContextInvalid signals a child index within range but pointing
	// at a freed or never-allocated slot.
	ChildContextInvalid
)

var names = map[Code]string{
	WouldBlock:                "would_block",
	EOF:                       "eof",
	PacketBadSize:             "packet_bad_size",
	UnexpectedDataType:        "unexpected_data_type",
	OutOfMemory:               "out_of_memory",
	AuthFailure:               "auth_failure",
	Unauthorized:              "unauthorized",
	MalformedRequest:          "malformed_request",
	NotFound:                  "not_found",
	CryptoFailure:             "crypto_failure",
	IPCWriteFailure:           "ipc_write_failure",
	RequestPacketInvalidSize:  "request_packet_invalid_size",
	ChildContextBadIndex:      "child_context_bad_index",
	ChildContextInvalid:       "child_context_invalid",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error wraps a Code with the context that produced it. It satisfies the
// error interface and unwraps to a sentinel comparable via errors.Is(err, C).
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

// Is allows errors.Is(err, agenterr.WouldBlock) to match by comparing codes,
// not identity, since every New() call allocates a distinct *Error.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// sentinels let callers write errors.Is(err, agenterr.NotFound) against a
// single shared value per code.
var sentinels = func() map[Code]*Error {
	m := make(map[Code]*Error, len(names))
	for c := range names {
		m[c] = &Error{Code: c}
	}
	return m
}()

// Sentinel returns the zero-context sentinel for c, suitable as the target
// of errors.Is.
func Sentinel(c Code) error { return sentinels[c] }

// New constructs an *Error for c carrying a formatted message.
func New(c Code, format string, args ...interface{}) error {
	return &Error{Code: c, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches additional context to err without losing its Code, mirroring
// the teacher repo's utils.Wrap but preserving error-kind dispatch.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if As(err, &ae) {
		return &Error{Code: ae.Code, msg: fmt.Sprintf("%s: %s", message, ae.msg)}
	}
	return fmt.Errorf("%s: %w", message, err)
}

// As is a thin indirection over errors.As kept local so callers of this
// package do not need a second import for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CodeOf extracts the Code carried by err, or 0 if err is not (or does not
// wrap) an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if As(err, &ae) {
		return ae.Code
	}
	return 0
}
