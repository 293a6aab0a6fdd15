package message

import (
	"fmt"
	"strconv"
)

// Kind identifies which scalar a Value carries.
type Kind uint32

const (
	KindInteger Kind = iota
	KindFloat
	KindBool
)

// String returns the lowercase name used by the CLI.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Value is the scalar payload of a signal. The zero Value is Int(0).
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
}

// Int creates an integer value.
func Int(v int64) Value { return Value{kind: KindInteger, i: v} }

// Float creates a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool creates a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

func (v Value) Kind() Kind { return v.kind }

// Int returns the integer payload. It is zero unless Kind is KindInteger.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload. It is zero unless Kind is KindFloat.
func (v Value) Float() float64 { return v.f }

// Bool returns the boolean payload. It is false unless Kind is KindBool.
func (v Value) Bool() bool { return v.b }

func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return strconv.FormatInt(v.i, 10)
	}
}

// ParseKind maps the CLI names "int", "float" and "bool" to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "int", "integer":
		return KindInteger, nil
	case "float":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	}
	return 0, fmt.Errorf("unknown value type %q", name)
}

// ParseValue parses text as a value of the given kind.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse integer value: %w", err)
		}
		return Int(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse float value: %w", err)
		}
		return Float(f), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool value: %w", err)
		}
		return Bool(b), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %d", kind)
}
