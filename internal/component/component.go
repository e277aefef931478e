// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package component defines the element contract the scheduling core drives
// and the builtin analytic elements.
package component

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/internal/dependency"
	"github.com/ClusterCockpit/cc-cosim/internal/util"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Store is the slice of the result storage a component writes to.
type Store interface {
	StoreChannels(chType schema.ChannelStoreType, time float64, level schema.StoreLevel) error
}

// Component is the contract every element implements. BaseComponent provides
// the state handling; concrete elements add Setup and DoStep.
type Component interface {
	Name() string
	TypeName() string
	ID() int
	SetID(id int)
	SequenceNumber() int

	Databus() *databus.Databus
	Store() Store
	SetStore(s Store)

	Time() float64
	SetTime(t float64)
	TimeStep() float64
	HasOwnTime() bool
	NumSteps() int64
	IncNumSteps()
	// UpdateTime advances the element's own time by its time step; the
	// result is startTime + numSteps * timeStep to keep fixed steps exact.
	UpdateTime()
	// SnapTimeTo moves the element time to t when it is within epsilon but
	// not bit-equal.
	SnapTimeTo(t float64) bool

	FinishState() schema.FinishState
	SetFinishState(s schema.FinishState)

	UseInputsAtEndTime() bool
	// StoreInputsAtEndTime reports (value, defined); an undefined flag is a
	// runtime error at the first coupling step.
	StoreInputsAtEndTime() (bool, bool)
	SetInputsAtEndTime(v bool)

	RTData() *RTFactorData

	Read(input *schema.ComponentInput) error
	Setup() error
	Initialize(tStart float64) error
	ExitInitMode() error
	DoStep(start, dt, end float64, isNewStep bool) error
	Finish() error
	WriteDebugInfoAfterSimulation() error

	// Dependency interface of the ordering stage. InitialDependencies may
	// return nil to fall back to the runtime matrix.
	Dependencies() *dependency.Matrix
	InitialDependencies() *dependency.Matrix
	NumOutGroups() int
	NumInitialOutGroups() int
	OutGroup(outChannel int) int
	InitialOutGroup(outChannel int) int
	PartOfInitCalculation() bool
}

// Optional hooks, detected by type assertion in the drivers.

type PreDoUpdater interface {
	PreDoUpdate(t, dt float64) error
}

type PostDoUpdater interface {
	PostDoUpdate(t, dt float64) error
}

type OutChannelUpdater interface {
	UpdateOutChannels() error
}

type InChannelUpdater interface {
	UpdateInChannels() error
}

// BaseComponent carries the element state shared by all implementations.
type BaseComponent struct {
	name     string
	typeName string
	id       int
	sequence int

	db    *databus.Databus
	store Store

	time       float64
	startTime  float64
	timeStep   float64
	hasOwnTime bool
	numSteps   int64

	finishState schema.FinishState

	inputsAtEndTime        bool
	inputsAtEndTimeDefined bool

	rtData RTFactorData

	snapWarn util.RepeatGuard

	inInfos  []*databus.ChannelInfo
	outInfos []*databus.ChannelInfo
}

func NewBaseComponent(name, typeName string) *BaseComponent {
	return &BaseComponent{
		name:     name,
		typeName: typeName,
		snapWarn: util.RepeatGuard{Max: 5},
	}
}

func (c *BaseComponent) Name() string     { return c.name }
func (c *BaseComponent) TypeName() string { return c.typeName }
func (c *BaseComponent) ID() int          { return c.id }
func (c *BaseComponent) SetID(id int)     { c.id = id }

func (c *BaseComponent) SequenceNumber() int       { return c.sequence }
func (c *BaseComponent) SetSequenceNumber(seq int) { c.sequence = seq }

func (c *BaseComponent) Databus() *databus.Databus { return c.db }
func (c *BaseComponent) Store() Store              { return c.store }
func (c *BaseComponent) SetStore(s Store)          { c.store = s }

func (c *BaseComponent) Time() float64     { return c.time }
func (c *BaseComponent) SetTime(t float64) { c.time = t }
func (c *BaseComponent) TimeStep() float64 { return c.timeStep }
func (c *BaseComponent) HasOwnTime() bool  { return c.hasOwnTime }

// SetTimeStep gives the element its own time and step size.
func (c *BaseComponent) SetTimeStep(dt float64) {
	c.timeStep = dt
	c.hasOwnTime = true
}

func (c *BaseComponent) NumSteps() int64 { return c.numSteps }
func (c *BaseComponent) IncNumSteps()    { c.numSteps++ }

func (c *BaseComponent) UpdateTime() {
	c.time = c.startTime + float64(c.numSteps)*c.timeStep
}

func (c *BaseComponent) SnapTimeTo(t float64) bool {
	if c.time == t {
		return false
	}
	if util.DoubleEq(c.time, t) {
		if c.snapWarn.Allow() {
			cclog.Warnf("%s: Snapping time %.17g to synchronization time %.17g", c.name, c.time, t)
			if c.snapWarn.JustExhausted() {
				cclog.Warnf("%s: Suppressing further time snap warnings", c.name)
			}
		}
		c.time = t
		return true
	}
	return false
}

func (c *BaseComponent) FinishState() schema.FinishState     { return c.finishState }
func (c *BaseComponent) SetFinishState(s schema.FinishState) { c.finishState = s }

func (c *BaseComponent) UseInputsAtEndTime() bool {
	return c.inputsAtEndTimeDefined && c.inputsAtEndTime
}

func (c *BaseComponent) StoreInputsAtEndTime() (bool, bool) {
	return c.inputsAtEndTime, c.inputsAtEndTimeDefined
}

func (c *BaseComponent) SetInputsAtEndTime(v bool) {
	c.inputsAtEndTime = v
	c.inputsAtEndTimeDefined = true
}

func (c *BaseComponent) RTData() *RTFactorData { return &c.rtData }

// DeclareChannels creates the databus from the element's port infos. Called
// by the concrete element's Read.
func (c *BaseComponent) DeclareChannels(inInfos, outInfos []*databus.ChannelInfo) {
	c.inInfos = inInfos
	c.outInfos = outInfos
	c.db = databus.NewDatabus(c.id, inInfos, outInfos)
}

// ReadCommon applies the component-level model settings shared by all
// element types.
func (c *BaseComponent) ReadCommon(input *schema.ComponentInput) error {
	if input.TimeStep != nil {
		if *input.TimeStep <= 0 {
			return fmt.Errorf("%s: time step %g must be positive", c.name, *input.TimeStep)
		}
		c.SetTimeStep(*input.TimeStep)
	}
	if input.TriggerSequence != nil {
		c.sequence = *input.TriggerSequence
	}
	if input.InputAtEndTime != nil {
		c.SetInputsAtEndTime(*input.InputAtEndTime)
	}
	return nil
}

// Default lifecycle stubs; concrete elements override what they need.

func (c *BaseComponent) Initialize(tStart float64) error {
	c.time = tStart
	c.startTime = tStart
	return nil
}

func (c *BaseComponent) ExitInitMode() error { return nil }

func (c *BaseComponent) Finish() error {
	return nil
}

func (c *BaseComponent) WriteDebugInfoAfterSimulation() error { return nil }

// Default dependency interface: one out group, every output depends on
// every input.

func (c *BaseComponent) Dependencies() *dependency.Matrix {
	return dependency.NewDenseMatrix(len(c.inInfos), c.NumOutGroups())
}

func (c *BaseComponent) InitialDependencies() *dependency.Matrix {
	return nil
}

// One group covers all outputs; elements without outputs still form one
// evaluation node so that pure sinks are stepped.
func (c *BaseComponent) NumOutGroups() int {
	return 1
}

func (c *BaseComponent) NumInitialOutGroups() int {
	return c.NumOutGroups()
}

func (c *BaseComponent) OutGroup(outChannel int) int        { return 0 }
func (c *BaseComponent) InitialOutGroup(outChannel int) int { return 0 }

func (c *BaseComponent) PartOfInitCalculation() bool { return true }
