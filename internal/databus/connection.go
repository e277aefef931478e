// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// Connection is the directed edge from an output port to an input port. It
// is owned by the source port's outgoing list; the target port holds a
// non-owning back reference. The connection hosts the filter and the
// conversion chain applied on the target side.
type Connection struct {
	// endpoint identity, by element ID and port index
	SourceComp int
	SourcePort int
	TargetComp int
	TargetPort int

	// SourceTimeStep/TargetTimeStep are the own time steps of the endpoint
	// elements, forwarded into the filter at every coupling step.
	SourceTimeStep float64
	TargetTimeStep float64

	state            schema.ConnectionState
	decoupleType     schema.DecoupleType
	decouplePriority int
	decoupled        bool
	activeDependency bool

	filter Filter
	// store is the transported value, updated by UpdateToOutput.
	store schema.ChannelValue

	// target-side conversion chain, applied by the input port in order:
	// type, unit, linear, range
	typeConv   Conversion
	unitConv   Conversion
	linearConv Conversion
	rangeConv  Conversion

	source *OutPort
	target *InPort
}

func (c *Connection) State() schema.ConnectionState     { return c.state }
func (c *Connection) DecoupleType() schema.DecoupleType { return c.decoupleType }
func (c *Connection) DecouplePriority() int             { return c.decouplePriority }
func (c *Connection) IsDecoupled() bool                 { return c.decoupled }
func (c *Connection) IsActiveDependency() bool          { return c.activeDependency }

// SetDecoupled marks the connection as broken for ordering; the target sees
// the previous-step value.
func (c *Connection) SetDecoupled() {
	c.decoupled = true
}

// SetActiveDependency controls whether this connection contributes an edge
// to the dependency graph.
func (c *Connection) SetActiveDependency(active bool) {
	c.activeDependency = active
}

// String renders the endpoints for log messages.
func (c *Connection) String() string {
	src, tgt := "?", "?"
	if c.source != nil {
		src = c.source.Info.LogName()
	}
	if c.target != nil {
		tgt = c.target.Info.LogName()
	}
	return fmt.Sprintf("%s -> %s", src, tgt)
}

// Source returns the owning output port.
func (c *Connection) Source() *OutPort { return c.source }

// Target returns the connected input port.
func (c *Connection) Target() *InPort { return c.target }

// UpdateFromInput pushes the source port's current value into the filter.
func (c *Connection) UpdateFromInput(interval schema.TimeInterval) error {
	if c.filter == nil || interval.Start < 0 {
		return nil
	}
	return c.filter.SetValue(interval.Start, &c.source.value)
}

// UpdateToOutput evaluates the filter at interval.Start into the transported
// value slot.
func (c *Connection) UpdateToOutput(interval schema.TimeInterval) error {
	if c.source.function != nil {
		c.store = schema.DoubleValue(c.source.function(interval))
		return nil
	}

	if c.filter == nil || interval.Start < 0 {
		return nil
	}

	val, err := c.filter.GetValue(interval.Start)
	if err != nil {
		return err
	}
	c.store = val
	return nil
}

// Value returns the transported value of the last UpdateToOutput.
func (c *Connection) Value() schema.ChannelValue {
	return c.store
}

// EnterCouplingStep forwards the step sizes into the filter and switches the
// connection state.
func (c *Connection) EnterCouplingStep(syncDt float64) error {
	if c.filter != nil {
		if err := c.filter.EnterCouplingStep(syncDt, c.SourceTimeStep, c.TargetTimeStep); err != nil {
			return err
		}
	}
	c.state = schema.StateCouplingStep
	return nil
}

// EnterCommunication promotes the filter's staged samples and switches the
// connection state. Calling it twice in a row is a no-op.
func (c *Connection) EnterCommunication(t float64) error {
	if c.state == schema.StateCommunication {
		return nil
	}
	if c.filter != nil {
		if err := c.filter.EnterCommunication(t); err != nil {
			return err
		}
	}
	c.state = schema.StateCommunication
	return nil
}
