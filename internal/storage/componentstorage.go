// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"fmt"
	"math"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/internal/util"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// ComponentStorage holds the four channel-class stores of one element and
// applies the per-element gating before a row is written.
type ComponentStorage struct {
	comp    component.Component
	storage *ResultsStorage

	channels [schema.ChannelStoreNum]*ChannelStorage

	storeLevel       schema.StoreLevel
	hasOwnStoreLevel bool

	startTime        float64
	startTimeDefined bool
	endTime          float64
	endTimeDefined   bool

	stepTime        float64
	stepTimeDefined bool
	stepCount       int

	timeOffset float64
}

func NewComponentStorage() *ComponentStorage {
	cs := &ComponentStorage{startTime: -1.0, endTime: -1.0}
	for i := range cs.channels {
		cs.channels[i] = NewChannelStorage()
	}
	return cs
}

// Read applies the per-element result settings from the model file.
// stepTime and stepCount are mutually exclusive.
func (cs *ComponentStorage) Read(input *schema.ComponentResultsInput) error {
	if input == nil {
		return nil
	}

	if input.ResultLevel != nil {
		level, ok := schema.ParseStoreLevel(*input.ResultLevel)
		if !ok {
			return fmt.Errorf("results: unknown result level '%s'", *input.ResultLevel)
		}
		cs.storeLevel = level
		cs.hasOwnStoreLevel = true
	}
	if input.StartTime != nil {
		cs.startTime = *input.StartTime
		cs.startTimeDefined = true
	}
	if input.EndTime != nil {
		cs.endTime = *input.EndTime
		cs.endTimeDefined = true
	}
	if input.StepTime != nil {
		cs.stepTime = *input.StepTime
		cs.stepTimeDefined = true
	}
	if input.StepCount != nil {
		cs.stepCount = *input.StepCount
	}

	if cs.stepTimeDefined && cs.stepTime != 0.0 && cs.stepCount != 0 {
		return fmt.Errorf("results: stepTime and stepCount are mutually exclusive")
	}

	return nil
}

// Component returns the element this store belongs to.
func (cs *ComponentStorage) Component() component.Component { return cs.comp }

// Channels returns the store of one channel class.
func (cs *ComponentStorage) Channels(chType schema.ChannelStoreType) *ChannelStorage {
	return cs.channels[chType]
}

// Setup registers the element's writeable channels with the class stores and
// the store with the results storage. The stepCount gate is rescaled once
// when the element's coupling step exceeds the synchronisation step.
func (cs *ComponentStorage) Setup(storage *ResultsStorage, comp component.Component, syncStep, couplingStep float64) error {
	cs.comp = comp
	cs.storage = storage

	if !cs.hasOwnStoreLevel {
		cs.storeLevel = storage.StoreLevel()
	}
	if cs.startTime == -1.0 {
		cs.startTime = storage.StartTime()
	}

	// Larger coupling steps take the role of the smaller synchronisation
	// steps; lower the row count by their ratio.
	if syncStep*couplingStep != 0.0 && cs.stepCount > 0 {
		cs.stepCount = int(float64(cs.stepCount) / math.Ceil(couplingStep/syncStep))
		if cs.stepCount < 1 {
			cs.stepCount = 1
		}
	}

	if cs.storeLevel <= schema.StoreNone {
		return nil
	}

	db := comp.Databus()

	register := func(chType schema.ChannelStoreType, num int, info func(int) *databus.ChannelInfo, value func(int) func() schema.ChannelValue) {
		if !storage.ChannelStoreEnabled(chType) || num == 0 {
			return
		}
		for i := 0; i < num; i++ {
			if !info(i).WriteResult {
				continue
			}
			cs.channels[chType].RegisterChannel(info(i), value(i))
		}
		cs.channels[chType].Setup(storage.NeedsFullStorage())
	}

	register(schema.ChannelStoreIn, db.NumInChannels(), db.InInfo, func(i int) func() schema.ChannelValue {
		p := db.InPort(i)
		return p.Value
	})
	register(schema.ChannelStoreOut, db.NumOutChannels(), db.OutInfo, func(i int) func() schema.ChannelValue {
		p := db.OutPort(i)
		return p.Value
	})
	register(schema.ChannelStoreLocal, db.NumLocalChannels(), db.LocalInfo, func(i int) func() schema.ChannelValue {
		p := db.LocalPort(i)
		return p.Value
	})
	register(schema.ChannelStoreRTFactor, db.NumRTFactorChannels(), db.RTFactorInfo, func(i int) func() schema.ChannelValue {
		p := db.RTFactorPort(i)
		return p.Value
	})

	return storage.RegisterComponent(cs)
}

// DisableStorage turns the element's result writing off.
func (cs *ComponentStorage) DisableStorage() {
	cs.storeLevel = schema.StoreNone
}

// StoreChannels writes one gated row of the given channel class.
func (cs *ComponentStorage) StoreChannels(chType schema.ChannelStoreType, time float64, level schema.StoreLevel) error {
	if cs.storage == nil || !cs.storage.Active() {
		return nil
	}

	channels := cs.channels[chType]
	if channels.NumChannels() <= 1 {
		return nil
	}

	time += cs.timeOffset

	if level > cs.storeLevel {
		return nil
	}

	if cs.startTimeDefined || cs.startTime >= 0 {
		if util.DoubleLt(time, cs.startTime) {
			return nil
		}
	}
	if cs.endTimeDefined {
		if util.DoubleLt(cs.endTime, time) {
			return nil
		}
	}

	// at least stepTime between two stored rows, except for the first
	if cs.stepTimeDefined {
		if util.DoubleGeq(channels.LastStored(), cs.startTime) &&
			util.DoubleGt(channels.LastStored()+cs.stepTime, time) {
			return nil
		}
	}

	if cs.stepCount > 0 {
		channels.storeCallNum++
		if (channels.storeCallNum-1)%cs.stepCount != 0 {
			return nil
		}
	}

	if _, err := channels.Store(time); err != nil {
		cclog.Errorf("%s: Results: Could not store ports for time %.17g s", cs.comp.Name(), time)
		return err
	}

	return cs.storage.SetStored(cs, chType)
}

// Finished flushes not yet written but complete rows.
func (cs *ComponentStorage) Finished() error {
	return cs.storage.SetFinished(cs)
}
