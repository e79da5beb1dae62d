package shared

import (
	"strings"
	"unicode"
)

// ═══════════════════════════════════════════════════════════════════════════
// Matric Number Value Object
// ═══════════════════════════════════════════════════════════════════════════

// MaxMatricLength bounds the storage key length.
const MaxMatricLength = 64

// MatricNumber is the unique student identifier and the record storage key.
type MatricNumber string

// String returns the string representation.
func (m MatricNumber) String() string {
	return string(m)
}

// IsEmpty checks if the matric number is empty.
func (m MatricNumber) IsEmpty() bool {
	return m == ""
}

// NewMatricNumber trims and validates a caller supplied matric number.
// Browser clients send the literal "undefined" when the field is unset,
// so it is rejected along with blank input.
func NewMatricNumber(raw string) (MatricNumber, error) {
	m := strings.TrimSpace(raw)
	if m == "" || m == "undefined" || m == "null" {
		return "", ErrMatricRequired
	}
	if len(m) > MaxMatricLength {
		return "", ErrMatricTooLong
	}
	if strings.IndexFunc(m, unicode.IsControl) >= 0 {
		return "", NewDomainError("record", "Validate", ErrInvalidFormat, "matric number contains control characters")
	}
	return MatricNumber(m), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Page Limit Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Limit is a caller supplied cap on the number of returned items.
type Limit int

// Resolve returns def for non-positive limits and clamps the rest to max.
func (l Limit) Resolve(def, max int) int {
	n := int(l)
	if n <= 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
