// Package shared holds the error kinds and value objects used by every
// domain package. It imports nothing outside the standard library.
package shared

import (
	"errors"
	"strings"
)

// Error kinds. Callers test for them with errors.Is or the Is* helpers,
// never by comparing messages.
var (
	ErrNotFound = errors.New("entity not found")

	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrCorruptData            = errors.New("stored data is corrupt")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError carries where a failure happened, which kind it is, and a
// message safe to show to API clients. Err is the optional cause and is
// never shown to clients.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Domain)
	b.WriteByte('.')
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewDomainError creates an error of the given kind with no cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause attached.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	de := NewDomainError(domain, op, kind, message)
	de.Err = err
	return de
}

var (
	ErrRecordNotFound   = NewDomainError("record", "Get", ErrNotFound, "student not found")
	ErrMatricRequired   = NewDomainError("record", "Validate", ErrInvalidID, "matric number is required")
	ErrMatricTooLong    = NewDomainError("record", "Validate", ErrValueOutOfRange, "matric number is too long")
	ErrHistoryCorrupt   = NewDomainError("record", "Decode", ErrCorruptData, "academic history cannot be decoded")
	ErrRecordConflict   = NewDomainError("record", "Put", ErrConcurrentModification, "record was modified concurrently")
	ErrStoreUnavailable = NewDomainError("store", "Connect", ErrServiceUnavailable, "record store is unavailable")

	ErrAuditSinkUnavailable = NewDomainError("audit", "Connect", ErrServiceUnavailable, "audit sink is unavailable")
	ErrAuditQueueFull       = NewDomainError("audit", "Record", ErrServiceUnavailable, "audit queue is full")
	ErrAuditClosed          = NewDomainError("audit", "Record", ErrServiceUnavailable, "audit publisher is closed")
)

func isAny(err error, kinds ...error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports a problem with caller input.
func IsValidation(err error) bool {
	return isAny(err, ErrInvalidInput, ErrInvalidID, ErrInvalidFormat, ErrValueOutOfRange)
}

// IsConflict reports a lost optimistic concurrency check.
func IsConflict(err error) bool { return errors.Is(err, ErrConcurrentModification) }

// IsUnavailable reports that a backing store could not be reached in time.
func IsUnavailable(err error) bool { return isAny(err, ErrServiceUnavailable, ErrTimeout) }

// IsCorrupt reports stored data that no longer decodes.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorruptData) }
