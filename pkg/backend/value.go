package backend

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the logical type of a Value.
type Kind int

const (
	// KindNull is a missing value.
	KindNull Kind = iota
	// KindBool is a boolean value.
	KindBool
	// KindInt is a 64-bit integer value.
	KindInt
	// KindFloat is a 64-bit floating point value.
	KindFloat
	// KindString is a text value.
	KindString
	// KindTime is a timestamp value.
	KindTime
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a null-aware scalar cell value. The zero value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
}

// Null returns the missing value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a text value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Time returns a timestamp value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// FromAny converts a dynamically typed value (as produced by encoding/json,
// yaml decoding, or database/sql scans) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(int64(val)), nil
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return Int(int64(val)), nil
	case float32:
		return Float(float64(val)), nil
	case float64:
		return Float(val), nil
	case string:
		return String(val), nil
	case []byte:
		return String(string(val)), nil
	case time.Time:
		return Time(val), nil
	default:
		return Null(), fmt.Errorf("cannot represent %T as a value", v)
	}
}

// MustFromAny is FromAny for statically known inputs; it panics on
// unrepresentable types. Intended for tests and fixtures.
func MustFromAny(v any) Value {
	val, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind returns the logical type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric reports whether the value is an int or float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Float64 returns the value as a float64. Bool and string values are not
// coerced; callers that need lenient parsing should convert upstream.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case KindInt:
		return float64(v.i), nil
	case KindFloat:
		return v.f, nil
	default:
		return 0, fmt.Errorf("cannot convert %s value to float", v.kind)
	}
}

// Text returns the value as a string.
func (v Value) Text() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("cannot convert %s value to string", v.kind)
	}
	return v.s, nil
}

// Timestamp returns the value as a time.Time.
func (v Value) Timestamp() (time.Time, error) {
	if v.kind != KindTime {
		return time.Time{}, fmt.Errorf("cannot convert %s value to time", v.kind)
	}
	return v.t, nil
}

// Native returns the value in its dynamic Go representation: nil for null,
// bool, int64, float64, string, or time.Time.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// Compare orders two non-null values: -1, 0, or 1. Numeric kinds compare
// numerically (int and float mix freely); strings compare lexicographically;
// timestamps compare chronologically. Any other pairing is an error.
func (v Value) Compare(other Value) (int, error) {
	if v.IsNull() || other.IsNull() {
		return 0, fmt.Errorf("cannot compare null values")
	}

	if v.IsNumeric() && other.IsNumeric() {
		a, _ := v.Float64()
		b, _ := other.Float64()
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		default:
			return 0, nil
		}
	}

	if v.kind == KindString && other.kind == KindString {
		return strings.Compare(v.s, other.s), nil
	}

	if v.kind == KindTime && other.kind == KindTime {
		switch {
		case v.t.Before(other.t):
			return -1, nil
		case v.t.After(other.t):
			return 1, nil
		default:
			return 0, nil
		}
	}

	return 0, fmt.Errorf("cannot compare %s value with %s value", v.kind, other.kind)
}

// datetimeLayouts are the accepted formats for parse_strings_as_datetimes.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ParseDatetime converts a string or timestamp value into a timestamp.
// Null values pass through unchanged.
func (v Value) ParseDatetime() (Value, error) {
	switch v.kind {
	case KindNull, KindTime:
		return v, nil
	case KindString:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, v.s); err == nil {
				return Time(t), nil
			}
		}
		return Null(), fmt.Errorf("cannot parse %q as datetime", v.s)
	default:
		return Null(), fmt.Errorf("cannot parse %s value as datetime", v.kind)
	}
}

// ColumnType is the declared logical type of a dataset column. Native types
// vary per backend (a wide integer column may be INTEGER on one engine and
// DOUBLE on another); the logical type is what evaluation semantics see.
type ColumnType string

const (
	TypeUnknown ColumnType = ""
	TypeBool    ColumnType = "bool"
	TypeInt     ColumnType = "int"
	TypeFloat   ColumnType = "float"
	TypeString  ColumnType = "string"
	TypeTime    ColumnType = "time"
)

// InferColumnType derives a logical column type from a value sample. Mixed
// int/float columns report float; an all-null sample reports unknown.
func InferColumnType(values []Value) ColumnType {
	typ := TypeUnknown
	for _, v := range values {
		var vt ColumnType
		switch v.kind {
		case KindNull:
			continue
		case KindBool:
			vt = TypeBool
		case KindInt:
			vt = TypeInt
		case KindFloat:
			vt = TypeFloat
		case KindString:
			vt = TypeString
		case KindTime:
			vt = TypeTime
		}
		switch {
		case typ == TypeUnknown:
			typ = vt
		case typ == vt:
		case typ == TypeInt && vt == TypeFloat, typ == TypeFloat && vt == TypeInt:
			typ = TypeFloat
		default:
			return TypeString
		}
	}
	return typ
}
