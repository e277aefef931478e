// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package task drives the outer synchronisation loop: it owns the step
// driver, the global epsilon, the result storage and the termination
// conditions.
package task

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/model"
	"github.com/ClusterCockpit/cc-cosim/internal/steptypes"
	"github.com/ClusterCockpit/cc-cosim/internal/storage"
	"github.com/ClusterCockpit/cc-cosim/internal/util"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Task is the simulation control block of one run.
type Task struct {
	timeStart      float64
	timeEnd        float64
	timeEndDefined bool

	stopIfFirstComponentFinished bool
	relativeEps                  float64
	rtFactorEnabled              bool

	useInputsAtEndTime        bool
	useInputsAtEndTimeDefined bool

	stepKind steptypes.Kind
	stepType steptypes.StepType
	params   *steptypes.Params

	Storage *storage.ResultsStorage

	// per-element result overrides, keyed by element name
	componentResults map[string]*schema.ComponentResultsInput

	flush         *storage.FlushService
	flushInterval string
}

func New() *Task {
	return &Task{
		Storage: storage.NewResultsStorage(),
		params:  &steptypes.Params{IsNewStep: true},
	}
}

// Read applies the task settings from the model file. resultDir overrides
// the configured result directory when non-empty (command line).
func (t *Task) Read(input *schema.TaskInput, results *schema.ResultsInput, resultDir string) error {
	cclog.Info("Reading settings:")

	t.timeStart = 0.0
	if input.StartTime != nil {
		t.timeStart = *input.StartTime
	}
	if t.timeStart < 0.0 {
		return fmt.Errorf("start time %g s cannot be smaller than 0.0 s", t.timeStart)
	}
	cclog.Infof("  Start time: %g s", t.timeStart)

	if input.EndTime != nil {
		t.timeEnd = *input.EndTime
		t.timeEndDefined = true
		cclog.Infof("  End time: %g s", t.timeEnd)
	} else {
		cclog.Info("  End time: infinite")
	}

	if input.EndType == "firstComponent" {
		t.stopIfFirstComponentFinished = true
		cclog.Info("  Simulation stops if an element stops")
	}

	t.params.TimeStepSize = 0.01
	if input.DeltaTime != nil {
		t.params.TimeStepSize = *input.DeltaTime
	}
	cclog.Infof("  Synchronization time step: %g s", t.params.TimeStepSize)

	if input.SumTime != nil {
		t.params.SumTime = *input.SumTime
	}

	var err error
	if t.stepKind, err = steptypes.ParseKind(input.CouplingMethod); err != nil {
		return err
	}
	switch t.stepKind {
	case steptypes.Sequential:
		cclog.Info("  Type: Sequential Co-Simulation")
	case steptypes.ParallelST:
		cclog.Info("  Type: Parallel (singlethreaded) Co-Simulation")
	case steptypes.ParallelMT:
		cclog.Info("  Type: Parallel (multithreaded) Co-Simulation")
	}

	if input.InputAtEndTime != nil {
		t.useInputsAtEndTime = *input.InputAtEndTime
		t.useInputsAtEndTimeDefined = true
	} else {
		cclog.Warn("Input time not specified")
		t.useInputsAtEndTime = false
		t.useInputsAtEndTimeDefined = true
	}

	t.relativeEps = 1e-10
	if input.RelativeEps != nil {
		t.relativeEps = *input.RelativeEps
	}
	cclog.Infof("  Epsilon: %g", t.relativeEps)

	if input.TimingOutput != nil {
		t.rtFactorEnabled = *input.TimingOutput
	}

	if results != nil && results.FlushInterval != nil {
		t.flushInterval = *results.FlushInterval
	}

	if results == nil {
		results = &schema.ResultsInput{}
	}
	return t.Storage.Read(results, resultDir)
}

// SetComponentResults attaches the per-element result overrides collected by
// the reader.
func (t *Task) SetComponentResults(m map[string]*schema.ComponentResultsInput) {
	t.componentResults = m
}

// Setup creates the step driver and installs the global epsilon.
func (t *Task) Setup(m *model.Model) error {
	var err error
	if t.stepType, err = steptypes.New(t.stepKind); err != nil {
		return err
	}

	if t.timeEndDefined && t.timeEnd <= t.timeStart {
		return fmt.Errorf("the end time is not larger than the start time (%g s <= %g s)", t.timeEnd, t.timeStart)
	}

	t.params.Time = t.timeStart
	t.params.StartTime = t.timeStart

	util.SetTimeEps(t.relativeEps * t.params.TimeStepSize)

	// propagate the task-wide input evaluation time to elements that do not
	// override it
	for _, comp := range m.Components {
		if _, defined := comp.StoreInputsAtEndTime(); !defined {
			comp.SetInputsAtEndTime(t.useInputsAtEndTime)
		}
	}

	return nil
}

// PrepareRun wires the result storage: rt-factor channels, one component
// storage per element, the backends and the flush service.
func (t *Task) PrepareRun(m *model.Model) error {
	if err := t.Storage.Setup(t.timeStart); err != nil {
		return err
	}

	for _, comp := range m.Components {
		input := t.componentResults[comp.Name()]

		rt := comp.RTData()
		rt.Enabled = t.rtFactorEnabled
		if input != nil && input.RTFactor != nil {
			rt.Enabled = *input.RTFactor
		}
		if err := rt.SetupChannels(comp.Databus(), comp.Name()); err != nil {
			return err
		}

		cs := storage.NewComponentStorage()
		if err := cs.Read(input); err != nil {
			return fmt.Errorf("%s: %w", comp.Name(), err)
		}
		if err := cs.Setup(t.Storage, comp, t.params.TimeStepSize, comp.TimeStep()); err != nil {
			return err
		}
		comp.SetStore(cs)
	}

	if err := t.Storage.SetupBackends(); err != nil {
		return err
	}

	var err error
	if t.flush, err = storage.StartFlushService(t.Storage, t.flushInterval); err != nil {
		return err
	}

	return nil
}

func (t *Task) submodelIsFinished(subModel *model.SubModel) bool {
	for _, node := range subModel.EvaluationList {
		if node.Comp.FinishState() == schema.NotFinished {
			return false
		}
	}
	return true
}

func (t *Task) checkIfFinished(subModel *model.SubModel, time float64) bool {
	if Interrupted() {
		return true
	}
	if t.stopIfFirstComponentFinished && t.params.ComponentFinished() {
		return true
	}
	// all elements finished ends the run regardless of the end time
	if t.submodelIsFinished(subModel) {
		return true
	}
	if t.timeEndDefined {
		return !util.DoubleLt(time, t.timeEnd)
	}
	return false
}

func (t *Task) storeModelOutputs(m *model.Model, time float64) error {
	for _, comp := range m.Components {
		if comp.Store() == nil {
			continue
		}
		if err := comp.Databus().UpdateObservablePorts(); err != nil {
			return err
		}
		if err := comp.Store().StoreChannels(schema.ChannelStoreOut, time, schema.StoreSynchronization); err != nil {
			return err
		}
		if err := comp.Store().StoreChannels(schema.ChannelStoreLocal, time, schema.StoreSynchronization); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the synchronisation loop until a termination condition
// fires. Backends are finalized on success and on error alike.
func (t *Task) Run(m *model.Model) error {
	subModel := m.SubModel
	params := t.params

	if err := m.Initialize(t.timeStart); err != nil {
		return t.fail(m, fmt.Errorf("initialization of model failed: %w", err))
	}

	cclog.Debugf("Synchronization time-step-size: %g", params.TimeStepSize)

	if err := t.storeModelOutputs(m, params.Time); err != nil {
		return t.fail(m, err)
	}

	if err := t.stepType.Configure(params, subModel); err != nil {
		return t.fail(m, err)
	}

	// sumTime mode accumulates; the default multiplies for fixed-step
	// stability
	params.TimeEndStep = t.timeStart

	var stepErr error
	for !t.checkIfFinished(subModel, params.Time) {
		if !params.SumTime {
			params.TimeEndStep = t.timeStart + float64(params.NumSteps+1)*params.TimeStepSize
		} else {
			params.TimeEndStep += params.TimeStepSize
		}

		if stepErr = t.stepType.DoStep(params, subModel); stepErr != nil {
			break
		}

		params.NumSteps++
		params.Time = params.TimeEndStep
	}

	if err := t.stepType.Finish(params, subModel); err != nil && stepErr == nil {
		stepErr = err
	}

	if err := m.Finish(); err != nil && stepErr == nil {
		stepErr = err
	}

	t.finishStorage()

	if stepErr != nil {
		cclog.Errorf("Simulation failed: %s", stepErr.Error())
		return stepErr
	}
	if Interrupted() {
		return fmt.Errorf("simulation interrupted")
	}

	cclog.Infof("Simulation finished at %g s after %d steps", params.Time, params.NumSteps)
	return nil
}

// fail finalizes storage with what was already written and returns err.
func (t *Task) fail(m *model.Model, err error) error {
	t.finishStorage()
	return err
}

func (t *Task) finishStorage() {
	if t.flush != nil {
		t.flush.Stop()
		t.flush = nil
	}
	if err := t.Storage.Finished(); err != nil {
		cclog.Errorf("Finalizing result storage failed: %s", err.Error())
	}
}

// Time returns the current synchronisation time (for monitoring).
func (t *Task) Time() float64 { return t.params.Time }

// NumSteps returns the number of completed synchronisation steps.
func (t *Task) NumSteps() int64 { return t.params.NumSteps }
