// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package steptypes

import (
	"fmt"
	"sync"

	"github.com/ClusterCockpit/cc-cosim/internal/model"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// doStepWorker is the long-lived goroutine owned by one evaluation node. It
// blocks on its start signal, runs the communication step and reports
// through the shared step barrier. Workers never talk to each other; the
// controller writes their arguments only while they are blocked.
type doStepWorker struct {
	node   *model.Node
	params *Params

	start    chan struct{}
	finished bool
	status   error
}

// parallelMTType drives one worker per evaluation node with a start event
// each and a barrier for step completion.
type parallelMTType struct {
	workers []*doStepWorker
	barrier sync.WaitGroup
	join    sync.WaitGroup
}

func (p *parallelMTType) Configure(params *Params, subModel *model.SubModel) error {
	if p.workers != nil {
		return nil
	}

	for _, node := range subModel.EvaluationList {
		w := &doStepWorker{
			node:  node,
			start: make(chan struct{}, 1),
		}
		p.workers = append(p.workers, w)

		p.join.Add(1)
		go func(w *doStepWorker) {
			defer p.join.Done()
			for range w.start {
				if w.finished {
					return
				}
				w.status = DoCommunicationStep(w.node.Comp, w.node.Group, w.params)
				if w.status != nil {
					cclog.Errorf("Simulation: Element DoStep failed: %s", w.status.Error())
				}
				p.barrier.Done()
			}
		}(w)
	}

	return nil
}

func (p *parallelMTType) DoStep(params *Params, subModel *model.SubModel) error {
	for _, comp := range subModel.Components {
		if err := compEnterCouplingStep(comp, params); err != nil {
			return err
		}
	}

	// pre-step updates run on the controller; they must not be
	// multithreaded
	for _, comp := range subModel.Components {
		if err := compPreDoUpdate(comp, params); err != nil {
			return err
		}
	}

	// only the controller is running here, workers are blocked on their
	// start events
	p.barrier.Add(len(p.workers))
	for _, w := range p.workers {
		w.params = params
		w.status = nil
		w.start <- struct{}{}
	}

	p.barrier.Wait()

	for _, w := range p.workers {
		if w.status != nil {
			return fmt.Errorf("simulation: synchronization step from %fs to %fs failed: %w",
				params.Time, params.TimeEndStep, w.status)
		}
	}

	for _, node := range subModel.EvaluationList {
		if err := compEnterCommunicationPoint(node.Comp, params); err != nil {
			return err
		}
	}

	return nil
}

func (p *parallelMTType) Finish(params *Params, subModel *model.SubModel) error {
	for _, w := range p.workers {
		w.finished = true
		w.start <- struct{}{}
	}
	p.join.Wait()
	p.workers = nil

	return finishSubModel(params, subModel)
}
