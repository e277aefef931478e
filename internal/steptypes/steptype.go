// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package steptypes implements the drivers advancing a sub-model across one
// synchronisation step: sequential, parallel single-threaded and parallel
// multithreaded. All three share the per-element communication-step core.
package steptypes

import (
	"fmt"
	"sync/atomic"

	"github.com/ClusterCockpit/cc-cosim/internal/model"
)

// Params is the per-step state shared by the driver and the element loop.
type Params struct {
	Time         float64
	TimeStepSize float64
	TimeEndStep  float64
	IsNewStep    bool
	NumSteps     int64
	SumTime      bool

	// StartTime is the simulation start, needed for rt-factor averages.
	StartTime float64

	// componentFinished is an OR-reduction across drivers and workers.
	componentFinished atomic.Bool
}

// SetComponentFinished records that at least one element reported finished.
func (p *Params) SetComponentFinished() {
	p.componentFinished.Store(true)
}

// ComponentFinished reads the OR-reduction at the step barrier.
func (p *Params) ComponentFinished() bool {
	return p.componentFinished.Load()
}

// StepType is one driver strategy.
type StepType interface {
	// Configure prepares driver state for the given sub-model (worker
	// threads for the multithreaded driver).
	Configure(params *Params, subModel *model.SubModel) error
	// DoStep advances every element of the sub-model to params.TimeEndStep.
	DoStep(params *Params, subModel *model.SubModel) error
	// Finish evaluates the final inputs and shuts the driver down.
	Finish(params *Params, subModel *model.SubModel) error
}

// Kind selects the coupling method from the model file.
type Kind int

const (
	Sequential Kind = iota
	ParallelST
	ParallelMT
)

// ParseKind maps the coupling method strings.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "sequential":
		return Sequential, nil
	case "parallel-st":
		return ParallelST, nil
	case "parallel-mt":
		return ParallelMT, nil
	default:
		return Sequential, fmt.Errorf("invalid coupling method '%s'", s)
	}
}

// New builds the driver for the coupling method.
func New(kind Kind) (StepType, error) {
	switch kind {
	case Sequential:
		return &sequentialType{}, nil
	case ParallelST:
		return &parallelSTType{}, nil
	case ParallelMT:
		return &parallelMTType{}, nil
	default:
		return nil, fmt.Errorf("invalid coupling method %d", kind)
	}
}
