// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"fmt"
	"math"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	"github.com/ClusterCockpit/cc-cosim/pkg/units"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Conversion transforms a port value in place. A port holds an ordered chain
// of conversions applied on every update.
type Conversion interface {
	Convert(val *schema.ChannelValue) error
	IsEmpty() bool
}

// rangeConversion clamps numeric values into [min, max].
type rangeConversion struct {
	typ      schema.ChannelType
	min, max *schema.ChannelValue
}

// NewRangeConversion validates and builds a clamp. min > max is a config
// error, as is a non-numeric type.
func NewRangeConversion(min, max *schema.ChannelValue) (Conversion, error) {
	if min == nil && max == nil {
		return nil, nil
	}

	if min != nil && max != nil {
		if min.Type != max.Type {
			return nil, fmt.Errorf("range conversion: types of min and max value do not match")
		}
		if !min.Leq(max) {
			return nil, fmt.Errorf("range conversion: specified max value < specified min value")
		}
	}

	c := &rangeConversion{min: min, max: max}
	if min != nil {
		c.typ = min.Type
	} else {
		c.typ = max.Type
	}

	if c.typ != schema.ChannelTypeDouble && c.typ != schema.ChannelTypeInteger {
		return nil, fmt.Errorf("range conversion is not defined for type %s", c.typ)
	}

	return c, nil
}

func (c *rangeConversion) Convert(val *schema.ChannelValue) error {
	if val.Type != c.typ {
		return fmt.Errorf("range conversion: value has wrong type %s, expected %s", val.Type, c.typ)
	}

	if c.min != nil && val.Leq(c.min) {
		return val.Set(c.min)
	} else if c.max != nil && val.Geq(c.max) {
		return val.Set(c.max)
	}

	return nil
}

func (c *rangeConversion) IsEmpty() bool {
	return c.min == nil && c.max == nil
}

// linearConversion applies v := v*factor + offset.
type linearConversion struct {
	factor *schema.ChannelValue
	offset *schema.ChannelValue
}

func NewLinearConversion(factor, offset *schema.ChannelValue) (Conversion, error) {
	if factor == nil && offset == nil {
		return nil, nil
	}

	for _, v := range []*schema.ChannelValue{factor, offset} {
		if v != nil && v.Type != schema.ChannelTypeDouble && v.Type != schema.ChannelTypeInteger {
			return nil, fmt.Errorf("linear conversion is not defined for type %s", v.Type)
		}
	}

	return &linearConversion{factor: factor, offset: offset}, nil
}

func (c *linearConversion) Convert(val *schema.ChannelValue) error {
	if c.factor != nil {
		if err := val.Scale(c.factor); err != nil {
			return err
		}
	}
	if c.offset != nil {
		if err := val.AddOffset(c.offset); err != nil {
			return err
		}
	}
	return nil
}

func (c *linearConversion) IsEmpty() bool {
	return c.factor == nil && c.offset == nil
}

// unitConversion maps doubles between two unit strings via the SI table.
type unitConversion struct {
	factor float64
	offset float64
}

// NewUnitConversion resolves both unit strings. An unknown unit degrades to
// the identity conversion with a warning; mismatching dimensions are a
// config error.
func NewUnitConversion(fromUnit, toUnit string, portName string) (Conversion, error) {
	if fromUnit == toUnit || fromUnit == "" || toUnit == "" {
		return nil, nil
	}

	from, to := units.NewUnit(fromUnit), units.NewUnit(toUnit)
	if !from.Valid() || !to.Valid() {
		cclog.Warnf("Port %s: Unknown unit '%s': using identity conversion", portName, pickUnknown(from, to))
		return nil, nil
	}

	factor, offset, err := units.Conversion(from, to)
	if err != nil {
		return nil, fmt.Errorf("port %s: %w", portName, err)
	}
	if factor == 1.0 && offset == 0.0 {
		return nil, nil
	}

	return &unitConversion{factor: factor, offset: offset}, nil
}

func pickUnknown(a, b units.Unit) string {
	if !a.Valid() {
		return a.String()
	}
	return b.String()
}

func (c *unitConversion) Convert(val *schema.ChannelValue) error {
	if val.Type != schema.ChannelTypeDouble {
		return fmt.Errorf("unit conversion: value has type %s, expected Double", val.Type)
	}
	val.SetDouble(val.Double()*c.factor + c.offset)
	return nil
}

func (c *unitConversion) IsEmpty() bool {
	return c.factor == 1.0 && c.offset == 0.0
}

// typeConversion implements the seven documented coercions between the
// numeric/bool types.
type typeConversion struct {
	from, to schema.ChannelType
}

// NewTypeConversion returns nil when from == to. Coercions outside the
// documented set fail.
func NewTypeConversion(from, to schema.ChannelType) (Conversion, error) {
	if from == to {
		return nil, nil
	}
	if from == schema.ChannelTypeBinary && to == schema.ChannelTypeBinaryRef ||
		from == schema.ChannelTypeBinaryRef && to == schema.ChannelTypeBinary {
		return nil, nil
	}

	ok := func(a, b schema.ChannelType) bool {
		return from == a && to == b || from == b && to == a
	}
	if !ok(schema.ChannelTypeInteger, schema.ChannelTypeDouble) &&
		!ok(schema.ChannelTypeBool, schema.ChannelTypeDouble) &&
		!ok(schema.ChannelTypeBool, schema.ChannelTypeInteger) {
		return nil, fmt.Errorf("no conversion from type %s to type %s", from, to)
	}

	return &typeConversion{from: from, to: to}, nil
}

func (c *typeConversion) Convert(val *schema.ChannelValue) error {
	if val.Type != c.from {
		return fmt.Errorf("type conversion: value has type %s, expected %s", val.Type, c.from)
	}

	switch {
	case c.from == schema.ChannelTypeInteger && c.to == schema.ChannelTypeDouble:
		*val = schema.DoubleValue(float64(val.Integer()))
	case c.from == schema.ChannelTypeDouble && c.to == schema.ChannelTypeInteger:
		*val = schema.IntegerValue(int32(math.Round(val.Double())))
	case c.from == schema.ChannelTypeBool && c.to == schema.ChannelTypeDouble:
		if val.Bool() {
			*val = schema.DoubleValue(1.0)
		} else {
			*val = schema.DoubleValue(0.0)
		}
	case c.from == schema.ChannelTypeDouble && c.to == schema.ChannelTypeBool:
		*val = schema.BoolValue(val.Double() != 0.0)
	case c.from == schema.ChannelTypeBool && c.to == schema.ChannelTypeInteger:
		if val.Bool() {
			*val = schema.IntegerValue(1)
		} else {
			*val = schema.IntegerValue(0)
		}
	case c.from == schema.ChannelTypeInteger && c.to == schema.ChannelTypeBool:
		*val = schema.BoolValue(val.Integer() != 0)
	default:
		return fmt.Errorf("no conversion from type %s to type %s", c.from, c.to)
	}

	return nil
}

func (c *typeConversion) IsEmpty() bool {
	return c.from == c.to
}
