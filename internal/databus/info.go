// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// ChannelInfo is the immutable metadata of one scalar port. It is created
// while the model file is read and lives for the whole run.
type ChannelInfo struct {
	Name        string
	NameInModel string
	Description string
	// ID is the stable identifier used in result files, typically
	// "<element>.<port>".
	ID   string
	Unit string
	Type schema.ChannelType

	Min    *schema.ChannelValue
	Max    *schema.ChannelValue
	Scale  *schema.ChannelValue
	Offset *schema.ChannelValue

	Default        *schema.ChannelValue
	Initial        *schema.ChannelValue
	InitialIsExact bool

	WriteResult bool
	Connected   bool
	Discrete    bool

	// Vector points to the family this scalar was scalarised from; nil for
	// plain scalar ports.
	Vector *VectorChannelInfo
}

// NewChannelInfo fills in the defaults: results are written for every type
// except binary.
func NewChannelInfo(name, id, unit string, t schema.ChannelType) *ChannelInfo {
	return &ChannelInfo{
		Name:        name,
		ID:          id,
		Unit:        unit,
		Type:        t,
		WriteResult: t != schema.ChannelTypeBinary && t != schema.ChannelTypeBinaryRef,
	}
}

// LogName returns the name used in log messages.
func (info *ChannelInfo) LogName() string {
	if info.ID != "" {
		return info.ID
	}
	return info.Name
}

// VectorChannelInfo groups the contiguous scalar family of a vector port.
// Children are named "<name>[i]" for i in [StartIndex, EndIndex].
type VectorChannelInfo struct {
	Name       string
	StartIndex int
	EndIndex   int
	Children   []*ChannelInfo
}

// NewVectorChannelInfo scalarises a vector port into its child infos.
func NewVectorChannelInfo(name, id, unit string, t schema.ChannelType, start, end int) (*VectorChannelInfo, error) {
	if end < start {
		return nil, fmt.Errorf("vector port %s: end index %d < start index %d", name, end, start)
	}

	vec := &VectorChannelInfo{
		Name:       name,
		StartIndex: start,
		EndIndex:   end,
		Children:   make([]*ChannelInfo, 0, end-start+1),
	}

	for i := start; i <= end; i++ {
		child := NewChannelInfo(fmt.Sprintf("%s[%d]", name, i), fmt.Sprintf("%s[%d]", id, i), unit, t)
		child.Vector = vec
		vec.Children = append(vec.Children, child)
	}

	return vec, nil
}

// Len returns the number of scalar children.
func (v *VectorChannelInfo) Len() int {
	return v.EndIndex - v.StartIndex + 1
}
