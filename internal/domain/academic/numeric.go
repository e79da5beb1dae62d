package academic

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a course field that clients send either as a JSON number or as
// a numeric string. It remembers whether the field was present at all, so the
// grading rules can tell "absent" apart from "present but unparseable".
type Numeric struct {
	raw string
	set bool
}

// Num builds a present Numeric from a float.
func Num(v float64) Numeric {
	return Numeric{raw: strconv.FormatFloat(v, 'f', -1, 64), set: true}
}

// Text builds a present Numeric from arbitrary text, parseable or not.
func Text(s string) Numeric {
	return Numeric{raw: s, set: true}
}

// IsSet reports whether the field was present.
func (n Numeric) IsSet() bool {
	return n.set
}

// Raw returns the value exactly as it was supplied.
func (n Numeric) Raw() string {
	return n.raw
}

// Float parses the value. ok is false when absent or unparseable.
func (n Numeric) Float() (float64, bool) {
	if !n.set {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(n.raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Int parses the value as an integer. Floats with a fractional part are
// rejected.
func (n Numeric) Int() (int, bool) {
	v, ok := n.Float()
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// MarshalJSON emits a JSON number when the value parses and the original
// text otherwise. Absent values become null.
func (n Numeric) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	if v, ok := n.Float(); ok {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return json.Marshal(n.raw)
}

// UnmarshalJSON accepts numbers, strings, booleans and null.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*n = Numeric{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeric{raw: s, set: true}
	case data[0] == '{' || data[0] == '[':
		// Structured values are kept as present but unparseable.
		*n = Numeric{raw: string(data), set: true}
	default:
		*n = Numeric{raw: string(data), set: true}
	}
	return nil
}
