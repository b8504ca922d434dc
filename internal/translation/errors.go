package translation

import "errors"

var (
	// ErrNotFound indicates the requested job or chunk does not exist.
	ErrNotFound = errors.New("translation: not found")
	// ErrConflict indicates a conditional transition matched no row, for
	// example dispatching a job that is no longer pending.
	ErrConflict = errors.New("translation: state conflict")
	// ErrVersionConflict indicates an optimistic update lost the race
	// against a concurrent writer.
	ErrVersionConflict = errors.New("translation: version conflict")
)

// ErrorKind classifies failures for HTTP mapping and retry decisions.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindService    ErrorKind = "service"
	KindRateLimit  ErrorKind = "rate_limit"
	KindTimeout    ErrorKind = "timeout"
	KindInternal   ErrorKind = "internal"
)

// Classified is implemented by errors that carry an ErrorKind.
type Classified interface {
	error
	Kind() ErrorKind
}

// ValidationError rejects malformed input before any work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Kind() ErrorKind { return KindValidation }

// ServiceError wraps a failure from an external collaborator.
type ServiceError struct {
	Op        string
	Err       error
	ErrorKind ErrorKind
	Retriable bool
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Kind() ErrorKind {
	if e.ErrorKind == "" {
		return KindService
	}
	return e.ErrorKind
}

// KindOf extracts the classification from err, defaulting to internal.
func KindOf(err error) ErrorKind {
	var classified Classified
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	return KindInternal
}
