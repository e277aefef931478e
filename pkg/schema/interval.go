// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// TimeInterval is the closed interval a coupling or synchronisation step
// covers. Simulation times are seconds.
type TimeInterval struct {
	Start float64
	End   float64
}

// Point returns the degenerate interval [t, t].
func Point(t float64) TimeInterval {
	return TimeInterval{Start: t, End: t}
}

// StoreLevel classifies a stored row: rows written during intra-sync coupling
// steps versus rows written at a communication point.
type StoreLevel int

const (
	StoreNone StoreLevel = iota
	StoreSynchronization
	StoreCoupling
	StoreAll
)

func (l StoreLevel) String() string {
	switch l {
	case StoreNone:
		return "none"
	case StoreSynchronization:
		return "synchronization"
	case StoreCoupling:
		return "coupling"
	case StoreAll:
		return "all"
	}
	return "undefined"
}

// ParseStoreLevel maps result-level strings from model files.
func ParseStoreLevel(s string) (StoreLevel, bool) {
	switch s {
	case "none":
		return StoreNone, true
	case "synchronization":
		return StoreSynchronization, true
	case "coupling":
		return StoreCoupling, true
	case "all":
		return StoreAll, true
	}
	return StoreNone, false
}

// FinishState tracks whether an element has signalled the end of its own
// simulation.
type FinishState int

const (
	NotFinished FinishState = iota
	Finished
)

// ChannelStoreType enumerates the four result channel classes of an element.
type ChannelStoreType int

const (
	ChannelStoreIn ChannelStoreType = iota
	ChannelStoreOut
	ChannelStoreLocal
	ChannelStoreRTFactor

	ChannelStoreNum
)

// FileSuffix returns the result-file suffix of the channel class.
func (t ChannelStoreType) FileSuffix() string {
	switch t {
	case ChannelStoreIn:
		return "in"
	case ChannelStoreOut:
		return "res"
	case ChannelStoreLocal:
		return "local"
	case ChannelStoreRTFactor:
		return "RTFactor"
	}
	return "unknown"
}

// NaNCheckLevel is the per-outport policy for NaN values.
type NaNCheckLevel int

const (
	// NaNCheckNever warns on NaN for unconnected ports and errors for
	// connected ones.
	NaNCheckNever NaNCheckLevel = iota
	// NaNCheckConnected errors when the port has a connection and warns
	// otherwise.
	NaNCheckConnected
	// NaNCheckAlways errors on every NaN.
	NaNCheckAlways
)

// DecoupleType controls whether a connection may be selected for breaking an
// algebraic loop.
type DecoupleType int

const (
	DecoupleNever DecoupleType = iota
	DecoupleIfNeeded
	DecoupleAlways
)

// ConnectionState is the phase the hosting connection (and thereby its
// filter) is in.
type ConnectionState int

const (
	StateInit ConnectionState = iota
	StateCouplingStep
	StateCommunication
)

// FilterKind enumerates the inter-/extrapolation filters available on a
// connection.
type FilterKind int

const (
	FilterConstantHold FilterKind = iota
	FilterZeroOrderHold
	FilterLinearInterpolation
	FilterLinearExtrapolation
	FilterPolynomialExtrapolation
	FilterPolynomialInterExtrapolation
	FilterDiscrete
)
