// Package apperrors defines the error taxonomy shared by the queue, the
// service clients, and the admin HTTP surface. Errors are plain sentinel
// wrapped values, checked with errors.Is/errors.As, never exceptions.
package apperrors

import "fmt"

// Sentinel errors for the priority queue.
var (
	// ErrQueueFull is returned by Push when the queue is already at maxsize.
	ErrQueueFull = fmt.Errorf("queue: full")
	// ErrQueueEmpty is returned by Pop when no item became available before
	// the wait timeout elapsed.
	ErrQueueEmpty = fmt.Errorf("queue: empty")
	// ErrInvalidItem is returned when a pushed or popped item fails basic
	// shape validation.
	ErrInvalidItem = fmt.Errorf("queue: invalid item")
	// ErrNotAllowed is returned by Push when an item's identity is already
	// indexed at a different priority and priority updates are disabled.
	ErrNotAllowed = fmt.Errorf("queue: priority update not allowed")
)

// ErrExpired signals that a cached value's TTL has lapsed. Callers handle it
// as a typed return value from the cache (see internal/services), never by
// catching a panic.
var ErrExpired = fmt.Errorf("cache: entry expired")

// ErrNotFound is returned by the admin HTTP surface when a named resource
// (typically a queue id) does not exist.
var ErrNotFound = fmt.Errorf("not found")

// ServiceError wraps a failure talking to an external service (catalogue,
// inventory, raw-data). Kind distinguishes the three failure modes spec'd
// for service clients so callers can decide whether to retry this tick or
// abandon it.
type ServiceError struct {
	Service string
	Kind    ServiceErrorKind
	Err     error
}

// ServiceErrorKind enumerates the ways a service call can fail.
type ServiceErrorKind int

const (
	// KindUnreachable means the TCP/HTTP connection could not be established.
	KindUnreachable ServiceErrorKind = iota
	// KindHTTPError means a non-2xx response was returned.
	KindHTTPError
	// KindAuthError means a 401/403 was returned, or token acquisition failed.
	KindAuthError
)

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (k ServiceErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindHTTPError:
		return "http_error"
	case KindAuthError:
		return "auth_error"
	default:
		return "unknown"
	}
}

// NewUnreachable wraps err as a ServiceError of kind KindUnreachable.
func NewUnreachable(service string, err error) error {
	return &ServiceError{Service: service, Kind: KindUnreachable, Err: err}
}

// NewHTTPError wraps err as a ServiceError of kind KindHTTPError.
func NewHTTPError(service string, err error) error {
	return &ServiceError{Service: service, Kind: KindHTTPError, Err: err}
}

// NewAuthError wraps err as a ServiceError of kind KindAuthError.
func NewAuthError(service string, err error) error {
	return &ServiceError{Service: service, Kind: KindAuthError, Err: err}
}
