package listener

import "errors"

// Sentinel errors returned by the listener. Callers match them with errors.Is.
var (
	// ErrInvalidArgument is returned for an empty or unparsable prefix or host.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation is returned when a lifecycle call is made in the wrong state.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrAlreadyClosed is returned by Response writes after Close.
	ErrAlreadyClosed = errors.New("response already closed")

	// ErrStreamTerminated is returned by GetNextRequest once the pending queue is closed.
	ErrStreamTerminated = errors.New("request stream terminated")

	// ErrResponseTimeout is reported to the connection error hook when the
	// application does not close a Response within the listener timeout.
	ErrResponseTimeout = errors.New("response not closed in time")

	// ErrHeaderTooLarge is returned when the request line and headers exceed MaxHeaderBytes.
	ErrHeaderTooLarge = errors.New("request header too large")

	// errEmptyRequest marks a connection that sent no request line.
	errEmptyRequest = errors.New("empty request line")
)
