package types

import (
	"math"
	"strconv"
)

// Number is an integral or floating-point scalar.
// The zero value is the integer 0.
type Number struct {
	i       int64
	f       float64
	isFloat bool
}

// Int returns an integral number
func Int(v int64) Number {
	return Number{i: v}
}

// Float returns a floating-point number
func Float(v float64) Number {
	return Number{f: v, isFloat: true}
}

// IsIntegral reports whether n is stored as an integer
func (n Number) IsIntegral() bool {
	return !n.isFloat
}

// IsWholeValued reports whether n has no fractional part, whatever its representation
func (n Number) IsWholeValued() bool {
	if !n.isFloat {
		return true
	}
	return !math.IsInf(n.f, 0) && !math.IsNaN(n.f) && math.Trunc(n.f) == n.f
}

// IsFinite reports whether n is neither NaN nor infinite
func (n Number) IsFinite() bool {
	return !n.isFloat || (!math.IsInf(n.f, 0) && !math.IsNaN(n.f))
}

// Int64 returns n truncated to an integer
func (n Number) Int64() int64 {
	if n.isFloat {
		return int64(n.f)
	}
	return n.i
}

// Float64 returns n as a float
func (n Number) Float64() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

// Equal compares representation and value: Int(2) is not equal to Float(2).
func (n Number) Equal(other Number) bool {
	if n.isFloat != other.isFloat {
		return false
	}
	if n.isFloat {
		return n.f == other.f
	}
	return n.i == other.i
}

// String formats integers without a decimal point and floats in shortest form
func (n Number) String() string {
	if !n.isFloat {
		return strconv.FormatInt(n.i, 10)
	}
	return strconv.FormatFloat(n.f, 'g', -1, 64)
}

// ParseNumber parses an integer literal as Int and anything else numeric as Float
func ParseNumber(s string) (Number, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, err
	}
	return Float(f), nil
}

func (Number) isValue() {}

// Kind implements Value
func (Number) Kind() ValueKind {
	return KindNumber
}
