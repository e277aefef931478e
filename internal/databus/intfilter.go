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

const intFilterBufferLen = 64

// intFilter interpolates piecewise inside the read buffer with constant-hold
// extrapolation beyond its ends. Samples arriving during the current
// synchronisation step fill the write buffer; the communication point swaps
// the buffers when the new range extends past the read buffer and seeds the
// next write buffer with the last committed sample.
type intFilter struct {
	state  *schema.ConnectionState
	degree int

	readX, readY   []float64
	writeX, writeY []float64

	lastCouplingStepTime float64

	overflowWarn util.RepeatGuard
	extrapWarn   util.RepeatGuard
}

func newIntFilter(degree int) (*intFilter, error) {
	if degree != 0 && degree != 1 {
		return nil, fmt.Errorf("interpolation filter: degree %d not supported", degree)
	}
	return &intFilter{
		degree: degree,
		readX:  make([]float64, 0, intFilterBufferLen),
		readY:  make([]float64, 0, intFilterBufferLen),
		writeX: make([]float64, 0, intFilterBufferLen),
		writeY: make([]float64, 0, intFilterBufferLen),

		overflowWarn: util.RepeatGuard{Max: 5},
		extrapWarn:   util.RepeatGuard{Max: 5},
	}, nil
}

func (f *intFilter) AssignState(state *schema.ConnectionState) {
	f.state = state
}

func (f *intFilter) SetValue(t float64, val *schema.ChannelValue) error {
	// bit-equal repeat of the previous coupling-step time carries no new
	// information
	if t == f.lastCouplingStepTime && len(f.writeX) > 0 {
		return nil
	}
	f.lastCouplingStepTime = t

	if n := len(f.writeX); n > 0 && util.DoubleEq(f.writeX[n-1], t) {
		return nil
	}

	if len(f.writeX) < cap(f.writeX) {
		f.writeX = append(f.writeX, t)
		f.writeY = append(f.writeY, val.Double())
	} else {
		if f.overflowWarn.Allow() {
			cclog.Warn("Connection: Interpolation filter: Number of stored values larger than buffer size")
		}
		f.writeX[len(f.writeX)-1] = t
		f.writeY[len(f.writeY)-1] = val.Double()
	}

	return nil
}

// inReadRange reports whether t lies inside the committed sample range.
func (f *intFilter) inReadRange(t float64) bool {
	return len(f.readX) > 0 &&
		!util.DoubleLt(t, f.readX[0]) &&
		!util.DoubleGt(t, f.readX[len(f.readX)-1])
}

func (f *intFilter) GetValue(t float64) (schema.ChannelValue, error) {
	if len(f.readX) == 0 {
		return schema.DoubleValue(0.0), nil
	}

	if !f.inReadRange(t) && f.extrapWarn.Allow() {
		cclog.Warnf("Connection: Interpolation filter: Extrapolating at time %g outside [%g, %g]",
			t, f.readX[0], f.readX[len(f.readX)-1])
	}

	return schema.DoubleValue(f.interpolate(t)), nil
}

func (f *intFilter) interpolate(t float64) float64 {
	xs, ys := f.readX, f.readY

	if t <= xs[0] {
		return ys[0]
	}
	if t >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}

	// locate the segment containing t
	hi := 1
	for hi < len(xs)-1 && xs[hi] < t {
		hi++
	}
	lo := hi - 1

	if f.degree == 0 {
		// step to the right-hand sample
		return ys[hi]
	}

	dt := xs[hi] - xs[lo]
	if dt == 0 {
		return ys[hi]
	}
	return ys[lo] + (ys[hi]-ys[lo])*(t-xs[lo])/dt
}

func (f *intFilter) EnterCouplingStep(syncDt, srcDt, tgtDt float64) error {
	return nil
}

func (f *intFilter) EnterCommunication(t float64) error {
	if len(f.readX) > 0 && !util.DoubleGt(t, f.readX[len(f.readX)-1]) {
		return nil
	}

	f.readX, f.writeX = f.writeX, f.readX
	f.readY, f.writeY = f.writeY, f.readY

	// carry the last committed sample over as the first sample of the next
	// write buffer
	f.writeX = f.writeX[:0]
	f.writeY = f.writeY[:0]
	if n := len(f.readX); n > 0 {
		f.writeX = append(f.writeX, f.readX[n-1])
		f.writeY = append(f.writeY, f.readY[n-1])
	}

	return nil
}
