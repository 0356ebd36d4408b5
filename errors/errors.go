package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorRouting
	ErrorInvalidArgument
	ErrorMemory
)

func (t ErrorType) String() string {
	switch t {
	case ErrorNone:
		return "None"
	case ErrorTransport:
		return "Transport error"
	case ErrorProtocol:
		return "Protocol error"
	case ErrorRouting:
		return "Routing error"
	case ErrorInvalidArgument:
		return "Invalid argument"
	case ErrorMemory:
		return "Memory error"
	default:
		return "Unknown error"
	}
}

// TransportError represents socket-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketCreateFailure
	TransportErrorSocketBindFailure
	TransportErrorSocketListenFailure
	TransportErrorSocketAcceptFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorSocketCloseFailure
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorNone:
		return "none"
	case TransportErrorSocketCreateFailure:
		return "socket creation failed"
	case TransportErrorSocketBindFailure:
		return "bind failed"
	case TransportErrorSocketListenFailure:
		return "listen failed"
	case TransportErrorSocketAcceptFailure:
		return "accept failed"
	case TransportErrorSocketReadFailure:
		return "receive failed"
	case TransportErrorSocketWriteFailure:
		return "send failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorSocketCloseFailure:
		return "socket close failed"
	case TransportErrorIoUringInit:
		return "io_uring initialization failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submission failed"
	default:
		return fmt.Sprintf("unknown transport error %d", int(e))
	}
}

// ProtocolError represents request-parsing and framing errors
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorInvalidRequestLine
	ProtocolErrorFieldTooLong
	ProtocolErrorFraming
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorNone:
		return "none"
	case ProtocolErrorInvalidRequestLine:
		return "invalid request line"
	case ProtocolErrorFieldTooLong:
		return "request line field too long"
	case ProtocolErrorFraming:
		return "response framing failed"
	default:
		return fmt.Sprintf("unknown protocol error %d", int(e))
	}
}

// RoutingError represents dispatch-time rejections
type RoutingError int

const (
	RoutingErrorNone RoutingError = iota
	RoutingErrorNotFound
	RoutingErrorPathTraversal
)

func (e RoutingError) String() string {
	switch e {
	case RoutingErrorNone:
		return "none"
	case RoutingErrorNotFound:
		return "route not found"
	case RoutingErrorPathTraversal:
		return "path traversal rejected"
	default:
		return fmt.Sprintf("unknown routing error %d", int(e))
	}
}

// ServerError is the main error type for the server
type ServerError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	RoutingErr    RoutingError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("%s (%s)", e.Type, e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("%s (%s)", e.Type, e.ProtocolErr)
	case ErrorRouting:
		typeStr = fmt.Sprintf("%s (%s)", e.Type, e.RoutingErr)
	default:
		typeStr = e.Type.String()
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *ServerError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *ServerError {
	return &ServerError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewRoutingError creates a new routing error
func NewRoutingError(err RoutingError, message string) *ServerError {
	return &ServerError{
		Type:       ErrorRouting,
		RoutingErr: err,
		Message:    message,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *ServerError {
	return &ServerError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// NewMemoryError creates a new memory error. It covers every case where a
// buffer for the response could not be produced.
func NewMemoryError(message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorMemory,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

func as(err error) (*ServerError, bool) {
	var se *ServerError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTransport reports whether err carries the given transport error code.
func IsTransport(err error, code TransportError) bool {
	se, ok := as(err)
	return ok && se.Type == ErrorTransport && se.TransportErr == code
}

// IsProtocol reports whether err carries the given protocol error code.
func IsProtocol(err error, code ProtocolError) bool {
	se, ok := as(err)
	return ok && se.Type == ErrorProtocol && se.ProtocolErr == code
}

// IsRouting reports whether err carries the given routing error code.
func IsRouting(err error, code RoutingError) bool {
	se, ok := as(err)
	return ok && se.Type == ErrorRouting && se.RoutingErr == code
}

// TypeOf returns the category of err, or ErrorNone if err is not a
// *ServerError.
func TypeOf(err error) ErrorType {
	if se, ok := as(err); ok {
		return se.Type
	}
	return ErrorNone
}
