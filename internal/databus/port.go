// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package databus

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/util"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Port is the runtime state shared by input, output and local ports: the
// immutable info, the current typed value and the reference into the
// element's own storage.
type Port struct {
	Info  *ChannelInfo
	value schema.ChannelValue
	ref   Reference

	// DefinedDuringInit is consulted by the initial-value resolver.
	DefinedDuringInit bool
}

// Value returns the port's current value.
func (p *Port) Value() schema.ChannelValue {
	return p.value
}

// SetValue overwrites the port's current value; the type must match.
func (p *Port) SetValue(v *schema.ChannelValue) error {
	if p.Info.Type == schema.ChannelTypeUnknown {
		return fmt.Errorf("port %s: no value can be set on a port of unknown type", p.Info.LogName())
	}
	return p.value.Set(v)
}

func (p *Port) setReference(ref Reference) error {
	if !p.ref.isZero() {
		return fmt.Errorf("port %s: reference already set", p.Info.LogName())
	}
	if !ref.matches(p.Info.Type) {
		return fmt.Errorf("port %s: reference does not match type %s", p.Info.LogName(), p.Info.Type)
	}
	p.ref = ref
	return nil
}

// InPort is an input port. It carries at most one incoming connection and
// the discrete/continuous flag.
type InPort struct {
	Port

	conn *Connection
}

func newInPort(info *ChannelInfo) *InPort {
	return &InPort{Port: Port{Info: info, value: schema.NewChannelValue(info.Type)}}
}

// Connection returns the single incoming connection or nil.
func (in *InPort) Connection() *Connection {
	return in.conn
}

// IsValid reports whether the input can be evaluated: it needs a connection,
// a default or an initial value.
func (in *InPort) IsValid() bool {
	return in.conn != nil || in.Info.Default != nil || in.Info.Initial != nil
}

// Update evaluates the input at interval.Start: ask the connection for the
// filtered value, run the conversion chain and copy the result into the
// element's storage cell.
func (in *InPort) Update(interval schema.TimeInterval) error {
	info := in.Info

	if in.conn != nil {
		if err := in.conn.UpdateToOutput(interval); err != nil {
			return fmt.Errorf("port %s: update inport: %w", info.LogName(), err)
		}
		v := in.conn.Value()
		in.value = v

		if in.conn.typeConv != nil {
			if err := in.conn.typeConv.Convert(&in.value); err != nil {
				return fmt.Errorf("port %s: update inport: type conversion: %w", info.LogName(), err)
			}
		}
	}

	if info.Type == schema.ChannelTypeDouble && in.conn != nil {
		if in.conn.unitConv != nil {
			if err := in.conn.unitConv.Convert(&in.value); err != nil {
				return fmt.Errorf("port %s: update inport: unit conversion: %w", info.LogName(), err)
			}
		}
	}

	if (info.Type == schema.ChannelTypeDouble || info.Type == schema.ChannelTypeInteger) && in.conn != nil {
		if in.conn.linearConv != nil {
			if err := in.conn.linearConv.Convert(&in.value); err != nil {
				return fmt.Errorf("port %s: update inport: linear conversion: %w", info.LogName(), err)
			}
		}
		if in.conn.rangeConv != nil {
			if err := in.conn.rangeConv.Convert(&in.value); err != nil {
				return fmt.Errorf("port %s: update inport: range conversion: %w", info.LogName(), err)
			}
		}
	}

	if in.ref.isZero() {
		return nil
	}

	return in.ref.write(&in.value)
}

// OutPort is an output port with its outgoing connections, the output-side
// conversions and the NaN policy.
type OutPort struct {
	Port

	conns    []*Connection
	function OutFunction

	rangeConv       Conversion
	rangeConvActive bool
	linearConv      Conversion

	nanCheck schema.NaNCheckLevel
	nanWarn  util.RepeatGuard
}

func newOutPort(info *ChannelInfo) *OutPort {
	out := &OutPort{
		Port:     Port{Info: info, value: schema.NewChannelValue(info.Type)},
		nanCheck: schema.NaNCheckAlways,
		nanWarn:  util.RepeatGuard{Max: 10},
	}

	// min/max and scale/offset of the port metadata act on the output side;
	// the infos were validated when the model was read
	var err error
	if out.rangeConv, err = NewRangeConversion(info.Min, info.Max); err != nil {
		cclog.Errorf("Port %s: %s", info.LogName(), err.Error())
	}
	out.rangeConvActive = out.rangeConv != nil
	if out.linearConv, err = NewLinearConversion(info.Scale, info.Offset); err != nil {
		cclog.Errorf("Port %s: %s", info.LogName(), err.Error())
	}

	return out
}

// Connections returns the outgoing connections of the port.
func (out *OutPort) Connections() []*Connection {
	return out.conns
}

// SetNaNCheck installs the NaN policy with the warning emission cap.
func (out *OutPort) SetNaNCheck(level schema.NaNCheckLevel, maxWarnings uint) {
	out.nanCheck = level
	out.nanWarn = util.RepeatGuard{Max: maxWarnings}
}

func (out *OutPort) warnNaN(t float64) {
	if out.nanWarn.Allow() {
		cclog.Warnf("Outport %s at time %f is not a number (NaN)", out.Info.Name, t)
		if out.nanWarn.JustExhausted() {
			cclog.Warnf("Outport %s: Suppressing further NaN warnings", out.Info.Name)
		}
	}
}

// Update computes the port value at interval.Start: sample the bound
// function or copy the element cell, apply range and linear conversion,
// push into all outgoing connections and enforce the NaN policy.
func (out *OutPort) Update(interval schema.TimeInterval) error {
	info := out.Info
	interval.End = interval.Start

	if out.function != nil {
		out.value = schema.DoubleValue(out.function(interval))
	} else if !out.ref.isZero() {
		if err := out.ref.read(&out.value); err != nil {
			return fmt.Errorf("port %s: update outport: %w", info.LogName(), err)
		}
	}

	if info.Type == schema.ChannelTypeDouble || info.Type == schema.ChannelTypeInteger {
		if out.rangeConv != nil && out.rangeConvActive {
			if err := out.rangeConv.Convert(&out.value); err != nil {
				return fmt.Errorf("port %s: update outport: range conversion: %w", info.LogName(), err)
			}
		}
		if out.linearConv != nil {
			if err := out.linearConv.Convert(&out.value); err != nil {
				return fmt.Errorf("port %s: update outport: linear conversion: %w", info.LogName(), err)
			}
		}
	}

	for _, conn := range out.conns {
		out.DefinedDuringInit = true
		if err := conn.UpdateFromInput(interval); err != nil {
			return fmt.Errorf("port %s: update outport: %w", info.LogName(), err)
		}
	}

	if out.value.IsNaN() {
		connected := len(out.conns) > 0
		switch out.nanCheck {
		case schema.NaNCheckAlways:
			return fmt.Errorf("outport %s at time %f is not a number (NaN)", info.Name, interval.Start)
		case schema.NaNCheckConnected:
			if connected {
				return fmt.Errorf("outport %s at time %f is not a number (NaN)", info.Name, interval.Start)
			}
			out.warnNaN(interval.Start)
		case schema.NaNCheckNever:
			// logged at error level for connected ports but the step goes on
			if out.nanWarn.Allow() {
				if connected {
					cclog.Errorf("Outport %s at time %f is not a number (NaN)", info.Name, interval.Start)
				} else {
					cclog.Warnf("Outport %s at time %f is not a number (NaN)", info.Name, interval.Start)
				}
				if out.nanWarn.JustExhausted() {
					cclog.Warnf("Outport %s: Suppressing further NaN warnings", info.Name)
				}
			}
		}
	}

	return nil
}
