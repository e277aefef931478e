// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// Reference binds a port to the element's own storage for the value. Exactly
// one of the typed pointers is set, matching the port type.
type Reference struct {
	Double  *float64
	Integer *int32
	Bool    *bool
	String  *string
	Binary  *[]byte
}

// NewReference wraps a typed pointer into a Reference. The supported cell
// types are *float64, *int32, *bool, *string and *[]byte.
func NewReference(cell any) (Reference, error) {
	switch c := cell.(type) {
	case *float64:
		return Reference{Double: c}, nil
	case *int32:
		return Reference{Integer: c}, nil
	case *bool:
		return Reference{Bool: c}, nil
	case *string:
		return Reference{String: c}, nil
	case *[]byte:
		return Reference{Binary: c}, nil
	default:
		return Reference{}, fmt.Errorf("unsupported reference cell type %T", cell)
	}
}

func (r Reference) isZero() bool {
	return r.Double == nil && r.Integer == nil && r.Bool == nil && r.String == nil && r.Binary == nil
}

func (r Reference) matches(t schema.ChannelType) bool {
	switch t {
	case schema.ChannelTypeDouble:
		return r.Double != nil
	case schema.ChannelTypeInteger:
		return r.Integer != nil
	case schema.ChannelTypeBool:
		return r.Bool != nil
	case schema.ChannelTypeString:
		return r.String != nil
	case schema.ChannelTypeBinary, schema.ChannelTypeBinaryRef:
		return r.Binary != nil
	}
	return false
}

// read copies the referenced cell into val. The value type decides which
// pointer is used.
func (r Reference) read(val *schema.ChannelValue) error {
	switch val.Type {
	case schema.ChannelTypeDouble:
		val.SetDouble(*r.Double)
	case schema.ChannelTypeInteger:
		val.SetInteger(*r.Integer)
	case schema.ChannelTypeBool:
		val.SetBool(*r.Bool)
	case schema.ChannelTypeString:
		tmp := schema.StringValue(*r.String)
		return val.Set(&tmp)
	case schema.ChannelTypeBinary:
		tmp := schema.BinaryValue(*r.Binary)
		return val.Set(&tmp)
	case schema.ChannelTypeBinaryRef:
		tmp := schema.BinaryRefValue(*r.Binary)
		return val.Set(&tmp)
	default:
		return fmt.Errorf("cannot read reference of type %s", val.Type)
	}
	return nil
}

// write copies val into the referenced cell. String and owned binary
// payloads are reallocated, not aliased.
func (r Reference) write(val *schema.ChannelValue) error {
	switch val.Type {
	case schema.ChannelTypeDouble:
		*r.Double = val.Double()
	case schema.ChannelTypeInteger:
		*r.Integer = val.Integer()
	case schema.ChannelTypeBool:
		*r.Bool = val.Bool()
	case schema.ChannelTypeString:
		*r.String = val.Str()
	case schema.ChannelTypeBinary:
		*r.Binary = append((*r.Binary)[:0], val.Binary()...)
	case schema.ChannelTypeBinaryRef:
		*r.Binary = val.Binary()
	default:
		return fmt.Errorf("cannot write reference of type %s", val.Type)
	}
	return nil
}

// OutFunction is a time-indexed pure function bound to an output port
// instead of a storage cell.
type OutFunction func(interval schema.TimeInterval) float64
