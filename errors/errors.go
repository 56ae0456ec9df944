package errors

import "fmt"

var (
	// ErrTransportUnavailable means the live hub could not be reached.
	// Callers fall back to simulated mode; this is not fatal.
	ErrTransportUnavailable = fmt.Errorf("live transport unavailable")

	ErrUsernameRequired = fmt.Errorf("username is required")
	ErrImageTooLarge    = fmt.Errorf("image exceeds the maximum allowed size")
	ErrNotAnImage       = fmt.Errorf("payload is not an image")

	ErrNotJoined    = fmt.Errorf("not joined to the chat")
	ErrReconnecting = fmt.Errorf("transport is reconnecting")
	// ErrTransportClosed is returned once a connection is permanently gone.
	// Actions must fail fast instead of being silently swallowed.
	ErrTransportClosed = fmt.Errorf("transport closed")

	ErrKeyAbsent = fmt.Errorf("key absent from shared store")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)
