// ABOUTME: Error taxonomy shared by the dispatcher and every protocol adapter.
// ABOUTME: Adapters render an *Error into their own wire shape (JSON-RPC code or HTTP status).

package toolbox

import (
	"errors"
	"fmt"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrDuplicateTool indicates a tool with the same name is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// ErrRegistrySealed indicates registration was attempted after the registry was sealed.
var ErrRegistrySealed = errors.New("registry is sealed")

// ErrInvalidTool indicates a descriptor failed structural checks at registration.
var ErrInvalidTool = errors.New("invalid tool descriptor")

// ErrorKind classifies a failed invocation independently of any wire protocol.
// The dispatcher produces KindUnknownTool and KindInvocationFailed; adapters
// single out KindUnknownTool and render every other kind as an internal failure.
type ErrorKind string

const (
	KindUnknownTool      ErrorKind = "UnknownTool"
	KindInvalidParams    ErrorKind = "InvalidParams"
	KindInvocationFailed ErrorKind = "InvocationFailed"
	KindParseError       ErrorKind = "ParseError"
	KindTransportError   ErrorKind = "TransportError"
)

// Error is a protocol-neutral invocation failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapError builds an *Error that keeps err in its chain.
func wrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf returns the ErrorKind carried by err, or KindTransportError when err
// is not an *Error.
func KindOf(err error) ErrorKind {
	var tbErr *Error
	if errors.As(err, &tbErr) {
		return tbErr.Kind
	}
	return KindTransportError
}
