// Package rerrors defines the behavioral error kinds of spec section 7 as
// sentinel errors. Callers wrap a sentinel with fmt.Errorf("...: %w", ...)
// and downstream code distinguishes kinds with errors.Is/errors.As rather
// than inspecting message text.
package rerrors

import "errors"

var (
	// ErrWireFormat marks any decoder failure: bad marker, impossible
	// length, checksum mismatch, malformed attribute.
	ErrWireFormat = errors.New("wire format error")

	// ErrProtocolViolation marks a well-formed message that is
	// semantically wrong (e.g. OPEN with my_as = 0).
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrFsmViolation marks an event arriving in a state that forbids it.
	ErrFsmViolation = errors.New("fsm violation")

	// ErrTransport marks a TCP reset, socket close, or write stall.
	ErrTransport = errors.New("transport error")

	// ErrFib marks a FIB installer failure. Logged; session state
	// unchanged.
	ErrFib = errors.New("fib error")

	// ErrConfiguration is surfaced at startup and aborts the agent
	// before any socket is opened.
	ErrConfiguration = errors.New("configuration error")
)
