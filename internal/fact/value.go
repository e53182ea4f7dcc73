package fact

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TimeLayout is the textual form of Time values: ISO-8601 in UTC at
// second precision. Two timestamps are identical iff their texts match.
const TimeLayout = "2006-01-02T15:04:05Z"

// Kind identifies the scalar type of a Value.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindTime
)

// Code returns the one-letter storage code of the kind.
func (k Kind) Code() string {
	switch k {
	case KindString:
		return "s"
	case KindInt:
		return "i"
	case KindFloat:
		return "f"
	case KindTime:
		return "t"
	default:
		return "?"
	}
}

// KindFromCode is the inverse of Kind.Code.
func KindFromCode(code string) (Kind, error) {
	switch code {
	case "s":
		return KindString, nil
	case "i":
		return KindInt, nil
	case "f":
		return KindFloat, nil
	case "t":
		return KindTime, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", code)
	}
}

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a sealed interface over the scalar types an attribute can hold.
// Only String, Int, Float and Time implement it.
type Value interface {
	Kind() Kind
	// Text is the canonical textual form used for exact-match comparison.
	Text() string
	value()
}

// String is a text value. Use S to construct one from arbitrary input.
type String string

func (String) value() {}
func (String) Kind() Kind { return KindString }
func (v String) Text() string { return string(v) }

// Int is a 64-bit integer value.
type Int int64

func (Int) value() {}
func (Int) Kind() Kind { return KindInt }
func (v Int) Text() string { return strconv.FormatInt(int64(v), 10) }

// Float is a 64-bit floating point value.
type Float float64

func (Float) value() {}
func (Float) Kind() Kind { return KindFloat }
func (v Float) Text() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }

// Time is a UTC timestamp truncated to whole seconds.
type Time struct {
	t time.Time
}

func (Time) value() {}
func (Time) Kind() Kind { return KindTime }
func (v Time) Text() string { return v.t.Format(TimeLayout) }

// Time returns the wrapped timestamp.
func (v Time) Time() time.Time { return v.t }

// Unix returns the timestamp as seconds since the epoch.
func (v Time) Unix() int64 { return v.t.Unix() }

// S builds a String. The text is kept byte for byte; strings compare as
// exact text.
func S(s string) String {
	return String(s)
}

// NFC builds a String from s in Unicode normalization form C. Use it for
// free text whose byte form may vary between sources; identity attributes
// should go through S so they round-trip unchanged.
func NFC(s string) String {
	return String(norm.NFC.String(s))
}

// I builds an Int.
func I(n int64) Int {
	return Int(n)
}

// F builds a Float.
func F(f float64) Float {
	return Float(f)
}

// T builds a Time, converting to UTC and dropping sub-second precision.
func T(t time.Time) Time {
	return Time{t: t.UTC().Truncate(time.Second)}
}

// Unix builds a Time from seconds since the epoch.
func Unix(sec int64) Time {
	return Time{t: time.Unix(sec, 0).UTC()}
}

// ParseTime parses the TimeLayout form (any RFC 3339 input is accepted).
func ParseTime(s string) (Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return T(t), nil
}

// Of converts a Go value into a Value. It accepts Values, strings, the
// integer and float types, and time.Time.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case string:
		return S(val), nil
	case int:
		return I(int64(val)), nil
	case int32:
		return I(int64(val)), nil
	case int64:
		return I(val), nil
	case uint32:
		return I(int64(val)), nil
	case float32:
		return F(float64(val)), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite float %v", val)
		}
		return F(val), nil
	case time.Time:
		return T(val), nil
	case nil:
		return nil, fmt.Errorf("nil is not a value")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustOf is Of for literals known to be valid. It panics on error.
func MustOf(v any) Value {
	val, err := Of(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Equal reports whether two values are identical: same kind and same
// canonical text.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Text() == b.Text()
}

// Number returns the numeric form of Int and Float values.
func Number(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		return float64(val), true
	default:
		return 0, false
	}
}
