// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ChannelType enumerates the value types a port can carry.
// ChannelTypeUnknown is the zero value and is forbidden on any live port.
type ChannelType int

const (
	ChannelTypeUnknown ChannelType = iota
	ChannelTypeDouble
	ChannelTypeInteger
	ChannelTypeBool
	ChannelTypeString
	ChannelTypeBinary
	ChannelTypeBinaryRef
)

func (t ChannelType) String() string {
	switch t {
	case ChannelTypeDouble:
		return "Double"
	case ChannelTypeInteger:
		return "Integer"
	case ChannelTypeBool:
		return "Bool"
	case ChannelTypeString:
		return "String"
	case ChannelTypeBinary:
		return "Binary"
	case ChannelTypeBinaryRef:
		return "BinaryReference"
	default:
		return "Unknown"
	}
}

// ParseChannelType maps the type strings used in model files.
func ParseChannelType(s string) (ChannelType, error) {
	switch strings.ToLower(s) {
	case "double", "real", "float64":
		return ChannelTypeDouble, nil
	case "integer", "int":
		return ChannelTypeInteger, nil
	case "bool", "boolean":
		return ChannelTypeBool, nil
	case "string":
		return ChannelTypeString, nil
	case "binary":
		return ChannelTypeBinary, nil
	default:
		return ChannelTypeUnknown, fmt.Errorf("unknown port type '%s'", s)
	}
}

// ChannelValue is the tagged value carried on every port and every filter
// sample. The zero value has type ChannelTypeUnknown and rejects all
// operations.
type ChannelValue struct {
	Type ChannelType

	d float64
	i int32
	b []byte
	s string
}

// NewChannelValue returns the zero value of the given type.
func NewChannelValue(t ChannelType) ChannelValue {
	return ChannelValue{Type: t}
}

func DoubleValue(v float64) ChannelValue {
	return ChannelValue{Type: ChannelTypeDouble, d: v}
}

func IntegerValue(v int32) ChannelValue {
	return ChannelValue{Type: ChannelTypeInteger, i: v}
}

func BoolValue(v bool) ChannelValue {
	cv := ChannelValue{Type: ChannelTypeBool}
	if v {
		cv.i = 1
	}
	return cv
}

func StringValue(v string) ChannelValue {
	return ChannelValue{Type: ChannelTypeString, s: v}
}

func BinaryValue(v []byte) ChannelValue {
	b := make([]byte, len(v))
	copy(b, v)
	return ChannelValue{Type: ChannelTypeBinary, b: b}
}

// BinaryRefValue borrows the given bytes without copying.
func BinaryRefValue(v []byte) ChannelValue {
	return ChannelValue{Type: ChannelTypeBinaryRef, b: v}
}

func (v *ChannelValue) Double() float64 { return v.d }
func (v *ChannelValue) Integer() int32  { return v.i }
func (v *ChannelValue) Bool() bool      { return v.i != 0 }
func (v *ChannelValue) Str() string     { return v.s }
func (v *ChannelValue) Binary() []byte  { return v.b }

func (v *ChannelValue) SetDouble(d float64) { v.d = d }
func (v *ChannelValue) SetInteger(i int32)  { v.i = i }
func (v *ChannelValue) SetBool(b bool) {
	if b {
		v.i = 1
	} else {
		v.i = 0
	}
}

// Set copies the value of other into v. The types must match exactly.
// String and owned binary payloads are copied, not aliased.
func (v *ChannelValue) Set(other *ChannelValue) error {
	if v.Type != other.Type {
		return fmt.Errorf("port value type mismatch: have %s, got %s", v.Type, other.Type)
	}

	switch v.Type {
	case ChannelTypeDouble:
		v.d = other.d
	case ChannelTypeInteger, ChannelTypeBool:
		v.i = other.i
	case ChannelTypeString:
		v.s = other.s
	case ChannelTypeBinary:
		v.b = append(v.b[:0], other.b...)
	case ChannelTypeBinaryRef:
		v.b = other.b
	default:
		return fmt.Errorf("cannot set value of type %s", v.Type)
	}

	return nil
}

// Scale multiplies a numeric value by factor.
func (v *ChannelValue) Scale(factor *ChannelValue) error {
	switch v.Type {
	case ChannelTypeDouble:
		if factor.Type != ChannelTypeDouble {
			return fmt.Errorf("scale: factor has type %s, expected %s", factor.Type, v.Type)
		}
		v.d *= factor.d
	case ChannelTypeInteger:
		if factor.Type != ChannelTypeInteger {
			return fmt.Errorf("scale: factor has type %s, expected %s", factor.Type, v.Type)
		}
		v.i *= factor.i
	default:
		return fmt.Errorf("scale: type %s not allowed", v.Type)
	}

	return nil
}

// AddOffset adds a numeric offset.
func (v *ChannelValue) AddOffset(offset *ChannelValue) error {
	switch v.Type {
	case ChannelTypeDouble:
		if offset.Type != ChannelTypeDouble {
			return fmt.Errorf("add offset: offset has type %s, expected %s", offset.Type, v.Type)
		}
		v.d += offset.d
	case ChannelTypeInteger:
		if offset.Type != ChannelTypeInteger {
			return fmt.Errorf("add offset: offset has type %s, expected %s", offset.Type, v.Type)
		}
		v.i += offset.i
	default:
		return fmt.Errorf("add offset: type %s not allowed", v.Type)
	}

	return nil
}

// Leq reports v <= other for numeric types. Mixed tags compare false.
func (v *ChannelValue) Leq(other *ChannelValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ChannelTypeDouble:
		return v.d <= other.d
	case ChannelTypeInteger, ChannelTypeBool:
		return v.i <= other.i
	}
	return false
}

// Geq reports v >= other for numeric types. Mixed tags compare false.
func (v *ChannelValue) Geq(other *ChannelValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ChannelTypeDouble:
		return v.d >= other.d
	case ChannelTypeInteger, ChannelTypeBool:
		return v.i >= other.i
	}
	return false
}

// Eq reports equality for numeric types and strings. Mixed tags compare false.
func (v *ChannelValue) Eq(other *ChannelValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ChannelTypeDouble:
		return v.d == other.d
	case ChannelTypeInteger, ChannelTypeBool:
		return v.i == other.i
	case ChannelTypeString:
		return v.s == other.s
	}
	return false
}

// IsNaN reports whether a double value is NaN. Non-doubles are never NaN.
func (v *ChannelValue) IsNaN() bool {
	return v.Type == ChannelTypeDouble && math.IsNaN(v.d)
}

func isSpecialChar(c byte) bool {
	return c < 0x20 || c > 0x7e || c == '"'
}

// String renders the value in the result-file encoding: %.13E for doubles,
// plain digits for integers, 0|1 for bools, control characters masked with
// '_' for strings, \xHH escapes for binary.
func (v ChannelValue) String() string {
	switch v.Type {
	case ChannelTypeDouble:
		return fmt.Sprintf("%.13E", v.d)
	case ChannelTypeInteger:
		return strconv.FormatInt(int64(v.i), 10)
	case ChannelTypeBool:
		if v.i != 0 {
			return "1"
		}
		return "0"
	case ChannelTypeString:
		buf := []byte(v.s)
		for i := range buf {
			if isSpecialChar(buf[i]) {
				buf[i] = '_'
			}
		}
		return string(buf)
	case ChannelTypeBinary, ChannelTypeBinaryRef:
		var sb strings.Builder
		for _, c := range v.b {
			fmt.Fprintf(&sb, "\\x%02x", c)
		}
		return sb.String()
	}
	return ""
}
