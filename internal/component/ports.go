// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package component

import (
	"encoding/json"
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// ParseValue decodes a raw JSON parameter into a channel value of the given
// type.
func ParseValue(raw json.RawMessage, t schema.ChannelType) (schema.ChannelValue, error) {
	switch t {
	case schema.ChannelTypeDouble:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return schema.ChannelValue{}, err
		}
		return schema.DoubleValue(v), nil
	case schema.ChannelTypeInteger:
		var v int32
		if err := json.Unmarshal(raw, &v); err != nil {
			return schema.ChannelValue{}, err
		}
		return schema.IntegerValue(v), nil
	case schema.ChannelTypeBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return schema.ChannelValue{}, err
		}
		return schema.BoolValue(v), nil
	case schema.ChannelTypeString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return schema.ChannelValue{}, err
		}
		return schema.StringValue(v), nil
	default:
		return schema.ChannelValue{}, fmt.Errorf("no parameter decoding for type %s", t)
	}
}

// BuildPortInfos turns the port records of a component into channel infos,
// scalarising vector ports into their child families.
func BuildPortInfos(compName string, inputs []schema.PortInput) ([]*databus.ChannelInfo, error) {
	var infos []*databus.ChannelInfo

	for _, in := range inputs {
		t := schema.ChannelTypeDouble
		if in.Type != "" {
			var err error
			if t, err = schema.ParseChannelType(in.Type); err != nil {
				return nil, fmt.Errorf("%s: port %s: %w", compName, in.Name, err)
			}
		}

		id := in.ID
		if id == "" {
			id = compName + "." + in.Name
		}

		if in.Count > 0 {
			vec, err := databus.NewVectorChannelInfo(in.Name, id, in.Unit, t, 0, in.Count-1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", compName, err)
			}
			for _, child := range vec.Children {
				if err := applyPortSettings(child, &in, t); err != nil {
					return nil, fmt.Errorf("%s: port %s: %w", compName, child.Name, err)
				}
				infos = append(infos, child)
			}
			continue
		}

		info := databus.NewChannelInfo(in.Name, id, in.Unit, t)
		if err := applyPortSettings(info, &in, t); err != nil {
			return nil, fmt.Errorf("%s: port %s: %w", compName, in.Name, err)
		}
		infos = append(infos, info)
	}

	// duplicate port names are a config error
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		if seen[info.Name] {
			return nil, fmt.Errorf("%s: duplicate port name '%s'", compName, info.Name)
		}
		seen[info.Name] = true
	}

	return infos, nil
}

func applyPortSettings(info *databus.ChannelInfo, in *schema.PortInput, t schema.ChannelType) error {
	info.NameInModel = in.NameInModel
	info.Description = in.Description
	info.Discrete = in.Discrete
	info.InitialIsExact = in.InitialIsExact

	if in.WriteResult != nil {
		info.WriteResult = *in.WriteResult
	}

	toValue := func(v float64) *schema.ChannelValue {
		cv := schema.DoubleValue(v)
		if t == schema.ChannelTypeInteger {
			cv = schema.IntegerValue(int32(v))
		}
		return &cv
	}

	if in.Min != nil {
		info.Min = toValue(*in.Min)
	}
	if in.Max != nil {
		info.Max = toValue(*in.Max)
	}
	if in.Min != nil && in.Max != nil && *in.Min > *in.Max {
		return fmt.Errorf("min %g > max %g", *in.Min, *in.Max)
	}
	if in.Scale != nil {
		info.Scale = toValue(*in.Scale)
	}
	if in.Offset != nil {
		info.Offset = toValue(*in.Offset)
	}

	if in.Default != nil {
		v, err := ParseValue(*in.Default, t)
		if err != nil {
			return fmt.Errorf("default value: %w", err)
		}
		info.Default = &v
	}
	if in.Initial != nil {
		v, err := ParseValue(*in.Initial, t)
		if err != nil {
			return fmt.Errorf("initial value: %w", err)
		}
		info.Initial = &v
	}

	return nil
}

// ApplyInitialValues writes initial or default values into the element cells
// of unbound inputs before the first step.
func ApplyInitialValues(db *databus.Databus) error {
	for i := 0; i < db.NumInChannels(); i++ {
		in := db.InPort(i)
		info := in.Info

		var init *schema.ChannelValue
		if info.Initial != nil {
			init = info.Initial
		} else if info.Default != nil {
			init = info.Default
		}
		if init == nil {
			continue
		}

		if err := in.SetValue(init); err != nil {
			return err
		}
	}
	return nil
}
