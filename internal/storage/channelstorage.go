// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package storage implements the result side of the engine: per-element
// channel buffers with start/end/step gating and the fan-out to pluggable
// backends.
package storage

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/internal/databus"
	"github.com/ClusterCockpit/cc-cosim/internal/util"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// channelRef couples the metadata of a registered channel with a getter for
// its current value.
type channelRef struct {
	info  *databus.ChannelInfo
	value func() schema.ChannelValue
}

var timeInfo = &databus.ChannelInfo{Name: "time", ID: "time", Unit: "s", Type: schema.ChannelTypeDouble, WriteResult: true}

// ChannelStorage is the column store of one channel class of one element.
// The first column is always time. In full mode every row is kept until the
// run finishes; in streaming mode only the latest row is held for the
// runtime backends.
type ChannelStorage struct {
	channels []channelRef

	rows        [][]schema.ChannelValue
	fullStorage bool

	lastStored   float64
	storeCallNum int
}

func NewChannelStorage() *ChannelStorage {
	cs := &ChannelStorage{lastStored: -1.0, fullStorage: true}
	cs.channels = append(cs.channels, channelRef{info: timeInfo, value: nil})
	return cs
}

// Setup fixes the storage strategy before the first row.
func (cs *ChannelStorage) Setup(fullStorage bool) {
	cs.fullStorage = fullStorage
}

// RegisterChannel appends one channel column.
func (cs *ChannelStorage) RegisterChannel(info *databus.ChannelInfo, value func() schema.ChannelValue) {
	cs.channels = append(cs.channels, channelRef{info: info, value: value})
}

// NumChannels returns the column count including time.
func (cs *ChannelStorage) NumChannels() int {
	return len(cs.channels)
}

// ChannelInfo returns the metadata of column idx (column 0 is time).
func (cs *ChannelStorage) ChannelInfo(idx int) *databus.ChannelInfo {
	return cs.channels[idx].info
}

// Length returns the number of stored rows.
func (cs *ChannelStorage) Length() int {
	return len(cs.rows)
}

// ValueAt returns the value in the given row and column.
func (cs *ChannelStorage) ValueAt(row, col int) schema.ChannelValue {
	return cs.rows[row][col]
}

// LastStored returns the time of the newest stored row, -1 before the first
// row.
func (cs *ChannelStorage) LastStored() float64 {
	return cs.lastStored
}

func (cs *ChannelStorage) snapshotRow(time float64) []schema.ChannelValue {
	row := make([]schema.ChannelValue, len(cs.channels))
	row[0] = schema.DoubleValue(time)
	for i := 1; i < len(cs.channels); i++ {
		row[i] = cs.channels[i].value()
	}
	return row
}

// Store appends a row for the given time. Time regression is an error; a
// row at exactly the last stored time overwrites it so the last sample at a
// sync point wins.
func (cs *ChannelStorage) Store(time float64) (overwrote bool, err error) {
	if len(cs.rows) > 0 && time < cs.lastStored && !util.DoubleEq(time, cs.lastStored) {
		return false, fmt.Errorf("results: time %g lies before already stored time %g", time, cs.lastStored)
	}

	row := cs.snapshotRow(time)

	if len(cs.rows) > 0 && util.DoubleEq(time, cs.lastStored) {
		cs.rows[len(cs.rows)-1] = row
		return true, nil
	}

	if cs.fullStorage || len(cs.rows) == 0 {
		cs.rows = append(cs.rows, row)
	} else {
		cs.rows[0] = row
	}
	cs.lastStored = time

	return false, nil
}
