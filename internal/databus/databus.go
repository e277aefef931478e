// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package databus implements the per-element port container and the
// connections between elements, including the inter-/extrapolation filters
// reconstructing sampled signals between coupling steps. The databus is
// strictly a container: it does not schedule and does not know the global
// time.
package databus

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// Databus owns the input, output, local (observable) and rt-factor ports of
// one element together with their infos and the original vector infos of
// scalarised vector ports.
type Databus struct {
	compID int

	in       []*InPort
	out      []*OutPort
	local    []*Port
	rtFactor []*Port

	inInfos       []*ChannelInfo
	outInfos      []*ChannelInfo
	localInfos    []*ChannelInfo
	rtFactorInfos []*ChannelInfo

	vectorInfos []*VectorChannelInfo
}

// NewDatabus creates the port arrays from the element's port infos. Ports
// live from here until the element is destroyed.
func NewDatabus(compID int, inInfos, outInfos []*ChannelInfo) *Databus {
	db := &Databus{
		compID:   compID,
		inInfos:  inInfos,
		outInfos: outInfos,
	}

	for _, info := range inInfos {
		db.in = append(db.in, newInPort(info))
		if info.Vector != nil {
			db.addVectorInfo(info.Vector)
		}
	}
	for _, info := range outInfos {
		db.out = append(db.out, newOutPort(info))
		if info.Vector != nil {
			db.addVectorInfo(info.Vector)
		}
	}

	return db
}

func (db *Databus) addVectorInfo(vec *VectorChannelInfo) {
	for _, v := range db.vectorInfos {
		if v == vec {
			return
		}
	}
	db.vectorInfos = append(db.vectorInfos, vec)
}

func (db *Databus) NumInChannels() int    { return len(db.in) }
func (db *Databus) NumOutChannels() int   { return len(db.out) }
func (db *Databus) NumLocalChannels() int { return len(db.local) }
func (db *Databus) NumRTFactorChannels() int {
	return len(db.rtFactor)
}

func (db *Databus) InPort(i int) *InPort   { return db.in[i] }
func (db *Databus) OutPort(i int) *OutPort { return db.out[i] }

func (db *Databus) InInfo(i int) *ChannelInfo       { return db.inInfos[i] }
func (db *Databus) OutInfo(i int) *ChannelInfo      { return db.outInfos[i] }
func (db *Databus) LocalInfo(i int) *ChannelInfo    { return db.localInfos[i] }
func (db *Databus) RTFactorInfo(i int) *ChannelInfo { return db.rtFactorInfos[i] }

// LocalPort and RTFactorPort expose observable ports to the result storage.
func (db *Databus) LocalPort(i int) *Port    { return db.local[i] }
func (db *Databus) RTFactorPort(i int) *Port { return db.rtFactor[i] }

// VectorInfos returns the original vector infos of scalarised ports.
func (db *Databus) VectorInfos() []*VectorChannelInfo { return db.vectorInfos }

// InChannelIndex resolves a port name to its index.
func (db *Databus) InChannelIndex(name string) (int, bool) {
	for i, info := range db.inInfos {
		if info.Name == name {
			return i, true
		}
	}
	return 0, false
}

// OutChannelIndex resolves a port name to its index.
func (db *Databus) OutChannelIndex(name string) (int, bool) {
	for i, info := range db.outInfos {
		if info.Name == name {
			return i, true
		}
	}
	return 0, false
}

// SetOutReference binds the element's storage cell to output port i.
func (db *Databus) SetOutReference(i int, cell any, t schema.ChannelType) error {
	if i < 0 || i >= len(db.out) {
		return fmt.Errorf("element %d: outport index %d out of range", db.compID, i)
	}
	out := db.out[i]
	if out.Info.Type != t {
		return fmt.Errorf("port %s: reference type %s does not match port type %s", out.Info.LogName(), t, out.Info.Type)
	}
	ref, err := NewReference(cell)
	if err != nil {
		return fmt.Errorf("port %s: %w", out.Info.LogName(), err)
	}
	return out.setReference(ref)
}

// SetOutReferenceFunction binds a time-indexed pure function to output port i
// instead of a storage cell.
func (db *Databus) SetOutReferenceFunction(i int, fn OutFunction) error {
	if i < 0 || i >= len(db.out) {
		return fmt.Errorf("element %d: outport index %d out of range", db.compID, i)
	}
	out := db.out[i]
	if out.Info.Type != schema.ChannelTypeDouble {
		return fmt.Errorf("port %s: function references require a double port", out.Info.LogName())
	}
	if out.function != nil {
		return fmt.Errorf("port %s: reference already set", out.Info.LogName())
	}
	out.function = fn
	return nil
}

// SetInReference binds the element's storage cell to input port i.
func (db *Databus) SetInReference(i int, cell any, t schema.ChannelType) error {
	if i < 0 || i >= len(db.in) {
		return fmt.Errorf("element %d: inport index %d out of range", db.compID, i)
	}
	in := db.in[i]
	if in.Info.Type != t {
		return fmt.Errorf("port %s: reference type %s does not match port type %s", in.Info.LogName(), t, in.Info.Type)
	}
	ref, err := NewReference(cell)
	if err != nil {
		return fmt.Errorf("port %s: %w", in.Info.LogName(), err)
	}
	return in.setReference(ref)
}

// SetOutRefVector bulk-binds the cells of a scalarised vector port family
// covering out indices [start, end].
func (db *Databus) SetOutRefVector(start, end int, cells []any, t schema.ChannelType) error {
	if end < start || end-start+1 != len(cells) {
		return fmt.Errorf("element %d: vector reference [%d, %d] does not match %d cells", db.compID, start, end, len(cells))
	}
	for i := start; i <= end; i++ {
		if err := db.SetOutReference(i, cells[i-start], t); err != nil {
			return err
		}
	}
	return nil
}

// SetInRefVector is the input counterpart of SetOutRefVector.
func (db *Databus) SetInRefVector(start, end int, cells []any, t schema.ChannelType) error {
	if end < start || end-start+1 != len(cells) {
		return fmt.Errorf("element %d: vector reference [%d, %d] does not match %d cells", db.compID, start, end, len(cells))
	}
	for i := start; i <= end; i++ {
		if err := db.SetInReference(i, cells[i-start], t); err != nil {
			return err
		}
	}
	return nil
}

func (db *Databus) hasPortNamed(name string) bool {
	for _, info := range db.inInfos {
		if info.Name == name {
			return true
		}
	}
	for _, info := range db.outInfos {
		if info.Name == name {
			return true
		}
	}
	for _, info := range db.localInfos {
		if info.Name == name {
			return true
		}
	}
	return false
}

// uniqueName suffixes " n" until no existing in/out/local port carries the
// name.
func (db *Databus) uniqueName(name string) string {
	unique := name
	for n := 2; db.hasPortNamed(unique); n++ {
		unique = fmt.Sprintf("%s %d", name, n)
	}
	return unique
}

// AddLocalChannel appends an observable local port bound to the given cell.
func (db *Databus) AddLocalChannel(name, id, unit string, cell any, t schema.ChannelType) error {
	info := NewChannelInfo(db.uniqueName(name), id, unit, t)
	p := &Port{Info: info, value: schema.NewChannelValue(t)}

	ref, err := NewReference(cell)
	if err != nil {
		return fmt.Errorf("local port %s: %w", name, err)
	}
	if !ref.matches(t) {
		return fmt.Errorf("local port %s: reference does not match type %s", name, t)
	}
	p.ref = ref

	db.local = append(db.local, p)
	db.localInfos = append(db.localInfos, info)
	return nil
}

// AddRTFactorChannel appends a timing port bound to the given cell.
func (db *Databus) AddRTFactorChannel(name, id, unit string, cell any, t schema.ChannelType) error {
	info := NewChannelInfo(name, id, unit, t)
	p := &Port{Info: info, value: schema.NewChannelValue(t)}

	ref, err := NewReference(cell)
	if err != nil {
		return fmt.Errorf("rt-factor port %s: %w", name, err)
	}
	if !ref.matches(t) {
		return fmt.Errorf("rt-factor port %s: reference does not match type %s", name, t)
	}
	p.ref = ref

	db.rtFactor = append(db.rtFactor, p)
	db.rtFactorInfos = append(db.rtFactorInfos, info)
	return nil
}

// UpdateObservablePorts refreshes the current values of local and rt-factor
// ports from their cells before a store.
func (db *Databus) UpdateObservablePorts() error {
	for _, p := range db.local {
		if err := p.ref.read(&p.value); err != nil {
			return fmt.Errorf("local port %s: %w", p.Info.LogName(), err)
		}
	}
	for _, p := range db.rtFactor {
		if err := p.ref.read(&p.value); err != nil {
			return fmt.Errorf("rt-factor port %s: %w", p.Info.LogName(), err)
		}
	}
	return nil
}

// TriggerOutChannels updates every output port for the given interval.
func (db *Databus) TriggerOutChannels(interval schema.TimeInterval) error {
	for _, out := range db.out {
		if err := out.Update(interval); err != nil {
			return err
		}
	}
	return nil
}

// TriggerInConnections updates every valid input port for the consumer's
// interval.
func (db *Databus) TriggerInConnections(interval schema.TimeInterval) error {
	for _, in := range db.in {
		if !in.IsValid() {
			continue
		}
		if err := in.Update(interval); err != nil {
			return err
		}
	}
	return nil
}

// EnterCouplingStep forwards to every outgoing connection of every output
// port.
func (db *Databus) EnterCouplingStep(syncDt float64) error {
	for _, out := range db.out {
		for _, conn := range out.conns {
			if err := conn.EnterCouplingStep(syncDt); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnterCommunication promotes all outgoing connections to the communication
// point at time t.
func (db *Databus) EnterCommunication(t float64) error {
	for _, out := range db.out {
		for _, conn := range out.conns {
			if err := conn.EnterCommunication(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnterCommunicationFor promotes only the given connections.
func EnterCommunicationFor(conns []*Connection, t float64) error {
	for _, conn := range conns {
		if err := conn.EnterCommunication(t); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionSpec carries the resolved endpoints and conversion settings of
// one connection.
type ConnectionSpec struct {
	SourceComp int
	SourcePort int
	TargetComp int
	TargetPort int

	Unit             string
	Min, Max         *float64
	Scale, Offset    *float64
	Decouple         schema.DecoupleType
	DecouplePriority int
	Filter           FilterSpec

	SourceTimeStep float64
	TargetTimeStep float64
}

// CreateConnection builds the filtered connection from source port i of this
// databus to target port j of the target databus. The new connection is
// owned by the source port's outgoing list; the target port keeps a back
// reference.
func (db *Databus) CreateConnection(spec ConnectionSpec, target *Databus) (*Connection, error) {
	if spec.SourcePort < 0 || spec.SourcePort >= len(db.out) {
		return nil, fmt.Errorf("connection: source port index %d out of range", spec.SourcePort)
	}
	if spec.TargetPort < 0 || spec.TargetPort >= len(target.in) {
		return nil, fmt.Errorf("connection: target port index %d out of range", spec.TargetPort)
	}

	source := db.out[spec.SourcePort]
	sink := target.in[spec.TargetPort]

	if sink.conn != nil {
		return nil, fmt.Errorf("port %s: only one incoming connection allowed", sink.Info.LogName())
	}

	conn := &Connection{
		SourceComp:       spec.SourceComp,
		SourcePort:       spec.SourcePort,
		TargetComp:       spec.TargetComp,
		TargetPort:       spec.TargetPort,
		SourceTimeStep:   spec.SourceTimeStep,
		TargetTimeStep:   spec.TargetTimeStep,
		decoupleType:     spec.Decouple,
		decouplePriority: spec.DecouplePriority,
		activeDependency: true,
		source:           source,
		target:           sink,
		store:            schema.NewChannelValue(source.Info.Type),
	}

	if spec.Decouple == schema.DecoupleAlways {
		conn.decoupled = true
	}

	// target-side conversion chain
	var err error
	if conn.typeConv, err = NewTypeConversion(source.Info.Type, sink.Info.Type); err != nil {
		return nil, fmt.Errorf("connection %s: %w", conn, err)
	}

	targetUnit := sink.Info.Unit
	if spec.Unit != "" {
		targetUnit = spec.Unit
	}
	if sink.Info.Type == schema.ChannelTypeDouble {
		if conn.unitConv, err = NewUnitConversion(source.Info.Unit, targetUnit, sink.Info.LogName()); err != nil {
			return nil, err
		}
	}

	var scale, offset *schema.ChannelValue
	if spec.Scale != nil {
		v := schema.DoubleValue(*spec.Scale)
		scale = &v
	}
	if spec.Offset != nil {
		v := schema.DoubleValue(*spec.Offset)
		offset = &v
	}
	if conn.linearConv, err = NewLinearConversion(scale, offset); err != nil {
		return nil, fmt.Errorf("connection %s: %w", conn, err)
	}

	var min, max *schema.ChannelValue
	if spec.Min != nil {
		v := schema.DoubleValue(*spec.Min)
		min = &v
	}
	if spec.Max != nil {
		v := schema.DoubleValue(*spec.Max)
		max = &v
	}
	if conn.rangeConv, err = NewRangeConversion(min, max); err != nil {
		return nil, fmt.Errorf("connection %s: %w", conn, err)
	}

	// discrete inputs force the mirror latch
	filterSpec := spec.Filter
	if sink.Info.Discrete {
		filterSpec.Kind = schema.FilterDiscrete
	}
	if conn.filter, err = NewFilter(filterSpec, source.Info.Type); err != nil {
		return nil, fmt.Errorf("connection %s: %w", conn, err)
	}
	conn.filter.AssignState(&conn.state)

	source.conns = append(source.conns, conn)
	sink.conn = conn
	source.Info.Connected = true
	sink.Info.Connected = true

	return conn, nil
}
