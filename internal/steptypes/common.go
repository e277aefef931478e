// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package steptypes

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/internal/model"
	"github.com/ClusterCockpit/cc-cosim/internal/util"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// DoCommunicationStep advances one element to params.TimeEndStep, taking as
// many coupling steps as its own time step dictates. It evaluates inputs,
// steps the element, publishes outputs and stores result rows.
func DoCommunicationStep(comp component.Component, group int, params *Params) error {
	if comp.FinishState() == schema.Finished {
		params.SetComponentFinished()
		return nil
	}

	db := comp.Databus()
	rt := comp.RTData()
	level := schema.StoreSynchronization

	for util.DoubleLt(comp.Time(), params.TimeEndStep) && comp.FinishState() != schema.Finished {
		interval := schema.TimeInterval{Start: comp.Time(), End: params.TimeEndStep}
		timeStep := params.TimeStepSize
		if comp.HasOwnTime() {
			if comp.TimeStep() > 0 {
				timeStep = comp.TimeStep()
				interval.End = interval.Start + timeStep
			}
		}

		if comp.UseInputsAtEndTime() {
			err := db.TriggerInConnections(schema.Point(interval.End))
			if err != nil {
				return fmt.Errorf("%s: update inports failed: %w", comp.Name(), err)
			}
		} else {
			if err := db.TriggerInConnections(interval); err != nil {
				return fmt.Errorf("%s: update inports failed: %w", comp.Name(), err)
			}
		}

		if hook, ok := comp.(component.InChannelUpdater); ok {
			if err := hook.UpdateInChannels(); err != nil {
				return fmt.Errorf("%s: update in channels failed: %w", comp.Name(), err)
			}
		}

		storeAtEnd, defined := comp.StoreInputsAtEndTime()
		if !defined {
			return fmt.Errorf("%s: storeInputsAtCouplingStepEndTime undefined", comp.Name())
		}
		storeTime := interval.Start
		if storeAtEnd {
			storeTime = interval.End
		}
		if err := storeChannels(comp, schema.ChannelStoreIn, storeTime, level); err != nil {
			return fmt.Errorf("%s: storing inports failed: %w", comp.Name(), err)
		}

		rt.BeginStep()
		if err := comp.DoStep(interval.Start, timeStep, interval.End, params.IsNewStep); err != nil {
			return fmt.Errorf("%s: DoStep failed: %w", comp.Name(), err)
		}

		comp.IncNumSteps()
		if comp.HasOwnTime() {
			comp.UpdateTime()
			comp.SnapTimeTo(params.TimeEndStep)
		} else {
			comp.SetTime(params.TimeEndStep)
		}
		rt.EndStep(interval.End - interval.Start)

		if hook, ok := comp.(component.OutChannelUpdater); ok {
			if err := hook.UpdateOutChannels(); err != nil {
				return fmt.Errorf("%s: update out channels failed: %w", comp.Name(), err)
			}
		}

		// outputs are computed at the element's advanced time
		outInterval := schema.Point(comp.Time())
		if err := db.TriggerOutChannels(outInterval); err != nil {
			return fmt.Errorf("%s: update outports failed: %w", comp.Name(), err)
		}

		// the last coupling step is the new synchronisation step
		if util.DoubleGeq(comp.Time(), params.TimeEndStep) {
			level = schema.StoreSynchronization
		} else {
			level = schema.StoreCoupling
		}

		if err := db.UpdateObservablePorts(); err != nil {
			return fmt.Errorf("%s: %w", comp.Name(), err)
		}
		if err := storeChannels(comp, schema.ChannelStoreOut, comp.Time(), level); err != nil {
			return fmt.Errorf("%s: storing outports failed: %w", comp.Name(), err)
		}
		if err := storeChannels(comp, schema.ChannelStoreLocal, comp.Time(), level); err != nil {
			return fmt.Errorf("%s: storing local values failed: %w", comp.Name(), err)
		}
	}

	if comp.FinishState() == schema.Finished {
		params.SetComponentFinished()
		cclog.Warnf("%s: Element finished at time %f", comp.Name(), comp.Time())
	}

	return nil
}

func storeChannels(comp component.Component, chType schema.ChannelStoreType, time float64, level schema.StoreLevel) error {
	if comp.Store() == nil {
		return nil
	}
	return comp.Store().StoreChannels(chType, time, level)
}

// compEnterCouplingStep switches every outgoing connection of the element
// into coupling-step mode.
func compEnterCouplingStep(comp component.Component, params *Params) error {
	if err := comp.Databus().EnterCouplingStep(params.TimeStepSize); err != nil {
		return fmt.Errorf("%s: enter coupling step mode failed: %w", comp.Name(), err)
	}
	return nil
}

// compEnterCommunicationPoint folds the rt-factor accumulators, promotes all
// outgoing connections and stores the timing row.
func compEnterCommunicationPoint(comp component.Component, params *Params) error {
	rt := comp.RTData()
	rt.AtCommunicationPoint(params.TimeEndStep - params.StartTime)

	if err := comp.Databus().EnterCommunication(params.TimeEndStep); err != nil {
		return fmt.Errorf("%s: enter communication point failed: %w", comp.Name(), err)
	}

	if rt.Enabled {
		if err := comp.Databus().UpdateObservablePorts(); err != nil {
			return err
		}
		if err := storeChannels(comp, schema.ChannelStoreRTFactor, params.TimeEndStep, schema.StoreSynchronization); err != nil {
			return fmt.Errorf("%s: storing timing values failed: %w", comp.Name(), err)
		}
	}

	return nil
}

// compTriggerInputs evaluates the element inputs once more at the final
// synchronisation point, used by Finish.
func compTriggerInputs(comp component.Component, params *Params) error {
	interval := schema.TimeInterval{Start: comp.Time(), End: params.TimeEndStep}
	if comp.HasOwnTime() && comp.TimeStep() > 0 {
		interval.End = interval.Start + comp.TimeStep()
	}

	if err := compEnterCouplingStep(comp, params); err != nil {
		return err
	}

	if err := comp.Databus().TriggerInConnections(interval); err != nil {
		return fmt.Errorf("%s: update inports failed: %w", comp.Name(), err)
	}

	storeAtEnd, defined := comp.StoreInputsAtEndTime()
	if !defined {
		return fmt.Errorf("%s: storeInputsAtCouplingStepEndTime undefined", comp.Name())
	}
	if !storeAtEnd {
		// end-time stores already happened in the last DoStep
		if err := storeChannels(comp, schema.ChannelStoreIn, interval.Start, schema.StoreSynchronization); err != nil {
			return fmt.Errorf("%s: storing inports failed: %w", comp.Name(), err)
		}
	}

	return nil
}

// compPreDoUpdate runs the optional pre-step hook with fresh inputs.
func compPreDoUpdate(comp component.Component, params *Params) error {
	hook, ok := comp.(component.PreDoUpdater)
	if !ok {
		return nil
	}

	interval := stepInterval(comp, params)
	if err := comp.Databus().TriggerInConnections(interval); err != nil {
		return fmt.Errorf("%s: update inports for pre-step update failed: %w", comp.Name(), err)
	}
	return hook.PreDoUpdate(interval.Start, params.TimeStepSize)
}

// compPostDoUpdate runs the optional post-step hook with fresh inputs.
func compPostDoUpdate(comp component.Component, params *Params) error {
	hook, ok := comp.(component.PostDoUpdater)
	if !ok {
		return nil
	}

	interval := stepInterval(comp, params)
	if err := comp.Databus().TriggerInConnections(interval); err != nil {
		return fmt.Errorf("%s: update inports for post-step update failed: %w", comp.Name(), err)
	}
	return hook.PostDoUpdate(interval.Start, params.TimeStepSize)
}

func stepInterval(comp component.Component, params *Params) schema.TimeInterval {
	interval := schema.TimeInterval{Start: params.Time, End: params.TimeEndStep}
	if comp.HasOwnTime() {
		interval.Start = comp.Time()
		if params.TimeStepSize > 0 {
			interval.End = interval.Start + params.TimeStepSize
		}
	}
	return interval
}

// Finish is shared by all drivers: final input evaluation, then the element
// finalizers run from the task.
func finishSubModel(params *Params, subModel *model.SubModel) error {
	for _, node := range subModel.EvaluationList {
		if err := compTriggerInputs(node.Comp, params); err != nil {
			return err
		}
	}
	return nil
}
