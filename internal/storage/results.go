// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Backend consumes stored rows. Runtime backends receive every row as it is
// stored; the others get the full replay when the run finishes. Backends
// look up the typed values through the component-storage API.
type Backend interface {
	Setup(s *ResultsStorage) error
	StoreAtRuntime() bool
	StoreRow(compIdx int, chType schema.ChannelStoreType, rowIdx int) error
	Flush() error
	Finish() error
}

// ResultsStorage owns the component stores and fans stored rows out to the
// configured backends.
type ResultsStorage struct {
	components []*ComponentStorage
	backends   []Backend

	resultDir  string
	startTime  float64
	storeLevel schema.StoreLevel

	channelStoreEnabled [schema.ChannelStoreNum]bool

	// serializes the backend fan-out when the multithreaded driver stores
	// from several workers
	storeMu sync.Mutex

	active bool
}

func NewResultsStorage() *ResultsStorage {
	rs := &ResultsStorage{
		storeLevel: schema.StoreSynchronization,
		startTime:  -1.0,
	}
	for i := range rs.channelStoreEnabled {
		rs.channelStoreEnabled[i] = true
	}
	return rs
}

// Read applies the task-wide result settings and instantiates the
// configured backends. Without any backend configuration the CSV backend is
// the built-in default.
func (rs *ResultsStorage) Read(input *schema.ResultsInput, resultDir string) error {
	rs.resultDir = resultDir
	if input.ResultDir != "" && rs.resultDir == "" {
		rs.resultDir = input.ResultDir
	}
	if rs.resultDir == "" {
		rs.resultDir = "results"
	}

	if input.ResultLevel != nil {
		level, ok := schema.ParseStoreLevel(*input.ResultLevel)
		if !ok {
			return fmt.Errorf("results: unknown result level '%s'", *input.ResultLevel)
		}
		rs.storeLevel = level
	}
	if input.StartTime != nil {
		rs.startTime = *input.StartTime
	}

	for chType, flag := range map[schema.ChannelStoreType]*bool{
		schema.ChannelStoreIn:       input.StoreIn,
		schema.ChannelStoreOut:      input.StoreOut,
		schema.ChannelStoreLocal:    input.StoreLocal,
		schema.ChannelStoreRTFactor: input.StoreRTFactor,
	} {
		if flag != nil {
			rs.channelStoreEnabled[chType] = *flag
		}
	}

	if len(input.Backends) == 0 {
		rs.backends = append(rs.backends, NewCsvBackend(schema.BackendInput{Kind: "csv"}))
		return nil
	}

	for _, b := range input.Backends {
		backend, err := newBackend(b)
		if err != nil {
			return err
		}
		rs.backends = append(rs.backends, backend)
	}

	return nil
}

func newBackend(input schema.BackendInput) (Backend, error) {
	switch input.Kind {
	case "csv":
		return NewCsvBackend(input), nil
	case "sqlite":
		return NewSqliteBackend(input), nil
	case "lineprotocol":
		return NewLineProtocolBackend(input), nil
	case "nats":
		return NewNatsBackend(input), nil
	case "s3":
		return NewS3Backend(input), nil
	default:
		return nil, fmt.Errorf("results: unknown backend '%s'", input.Kind)
	}
}

// AddBackend appends an already constructed backend.
func (rs *ResultsStorage) AddBackend(b Backend) {
	rs.backends = append(rs.backends, b)
}

func (rs *ResultsStorage) ResultDir() string               { return rs.resultDir }
func (rs *ResultsStorage) StartTime() float64              { return rs.startTime }
func (rs *ResultsStorage) StoreLevel() schema.StoreLevel   { return rs.storeLevel }
func (rs *ResultsStorage) Active() bool                    { return rs.active }
func (rs *ResultsStorage) Components() []*ComponentStorage { return rs.components }

func (rs *ResultsStorage) ChannelStoreEnabled(chType schema.ChannelStoreType) bool {
	return rs.channelStoreEnabled[chType]
}

// NeedsFullStorage reports whether any backend consumes the replay at the
// end of the run.
func (rs *ResultsStorage) NeedsFullStorage() bool {
	for _, b := range rs.backends {
		if !b.StoreAtRuntime() {
			return true
		}
	}
	// keep every row too when no backend is configured at all
	return len(rs.backends) == 0
}

// Setup prepares the result directory and fixes the simulation start time.
func (rs *ResultsStorage) Setup(startTime float64) error {
	if rs.startTime < 0 {
		rs.startTime = startTime
	}

	if err := os.MkdirAll(rs.resultDir, 0o755); err != nil {
		return fmt.Errorf("results: could not create result directory '%s': %w", rs.resultDir, err)
	}

	rs.active = true
	return nil
}

// SetupBackends initializes all backends once the component stores are
// registered.
func (rs *ResultsStorage) SetupBackends() error {
	for _, b := range rs.backends {
		if err := b.Setup(rs); err != nil {
			return err
		}
	}
	return nil
}

// RegisterComponent adds a component store for enumeration by the backends.
func (rs *ResultsStorage) RegisterComponent(cs *ComponentStorage) error {
	for _, c := range rs.components {
		if c == cs {
			return nil
		}
	}
	rs.components = append(rs.components, cs)
	return nil
}

func (rs *ResultsStorage) componentIndex(cs *ComponentStorage) int {
	for i, c := range rs.components {
		if c == cs {
			return i
		}
	}
	return -1
}

// SetStored hands the newest row of the given class to the runtime
// backends.
func (rs *ResultsStorage) SetStored(cs *ComponentStorage, chType schema.ChannelStoreType) error {
	compIdx := rs.componentIndex(cs)
	if compIdx < 0 {
		return fmt.Errorf("results: store for unregistered element")
	}

	rowIdx := cs.channels[chType].Length() - 1

	rs.storeMu.Lock()
	defer rs.storeMu.Unlock()

	for _, b := range rs.backends {
		if !b.StoreAtRuntime() {
			continue
		}
		if err := b.StoreRow(compIdx, chType, rowIdx); err != nil {
			return err
		}
	}

	return nil
}

// SetFinished flushes the runtime backends for one component store.
func (rs *ResultsStorage) SetFinished(cs *ComponentStorage) error {
	return rs.Flush()
}

// Flush drives the runtime backends' flush, used by the periodic flush
// service.
func (rs *ResultsStorage) Flush() error {
	rs.storeMu.Lock()
	defer rs.storeMu.Unlock()

	for _, b := range rs.backends {
		if b.StoreAtRuntime() {
			if err := b.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finished replays all rows into the full-storage backends and finalizes
// everything. It is called on success and on error alike, so backends see
// whatever was stored before an abort.
func (rs *ResultsStorage) Finished() error {
	var firstErr error

	for _, b := range rs.backends {
		if b.StoreAtRuntime() {
			continue
		}
		for compIdx, cs := range rs.components {
			for chType := schema.ChannelStoreType(0); chType < schema.ChannelStoreNum; chType++ {
				channels := cs.channels[chType]
				for row := 0; row < channels.Length(); row++ {
					if err := b.StoreRow(compIdx, chType, row); err != nil {
						if firstErr == nil {
							firstErr = err
						}
						cclog.Errorf("[STORAGE]> Backend store failed: %s", err.Error())
						break
					}
				}
			}
		}
	}

	for _, b := range rs.backends {
		if err := b.Finish(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			cclog.Errorf("[STORAGE]> Backend finish failed: %s", err.Error())
		}
	}

	rs.active = false
	return firstErr
}
