// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	"github.com/influxdata/line-protocol/v2/lineprotocol"
)

// encodeRow renders one stored row as one line-protocol point per channel:
// measurement = channel class, tags component/channel/unit, field "value",
// timestamp = simulated time in nanoseconds.
func encodeRow(enc *lineprotocol.Encoder, cs *ComponentStorage, chType schema.ChannelStoreType, rowIdx int) error {
	channels := cs.Channels(chType)
	timeVal := channels.ValueAt(rowIdx, 0)
	simTime := timeVal.Double()
	ts := time.Unix(0, int64(simTime*1e9))

	for col := 1; col < channels.NumChannels(); col++ {
		info := channels.ChannelInfo(col)
		val := channels.ValueAt(rowIdx, col)

		// tags in lexical order, the encoder enforces it
		enc.StartLine(chType.FileSuffix())
		enc.AddTag("channel", info.Name)
		enc.AddTag("component", cs.Component().Name())
		if info.Unit != "" {
			enc.AddTag("unit", info.Unit)
		}

		switch val.Type {
		case schema.ChannelTypeDouble:
			enc.AddField("value", lineprotocol.MustNewValue(val.Double()))
		case schema.ChannelTypeInteger:
			enc.AddField("value", lineprotocol.MustNewValue(int64(val.Integer())))
		case schema.ChannelTypeBool:
			enc.AddField("value", lineprotocol.MustNewValue(val.Bool()))
		default:
			enc.AddField("value", lineprotocol.MustNewValue(val.String()))
		}

		enc.EndLine(ts)
		if err := enc.Err(); err != nil {
			return fmt.Errorf("results: line protocol encoding failed: %w", err)
		}
	}

	return nil
}

// LineProtocolBackend appends rows as influx line protocol to one .lp file
// per run.
type LineProtocolBackend struct {
	storeAtRuntime bool
	directory      string

	storage *ResultsStorage
	file    *os.File
}

func NewLineProtocolBackend(input schema.BackendInput) *LineProtocolBackend {
	return &LineProtocolBackend{
		storeAtRuntime: input.StoreAtRuntime,
		directory:      input.Directory,
	}
}

func (l *LineProtocolBackend) Setup(s *ResultsStorage) error {
	l.storage = s
	if l.directory == "" {
		l.directory = s.ResultDir()
	}
	if err := os.MkdirAll(l.directory, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(l.directory, "results.lp"))
	if err != nil {
		return fmt.Errorf("results: could not create line protocol file: %w", err)
	}
	l.file = f
	return nil
}

func (l *LineProtocolBackend) StoreAtRuntime() bool {
	return l.storeAtRuntime
}

func (l *LineProtocolBackend) StoreRow(compIdx int, chType schema.ChannelStoreType, rowIdx int) error {
	cs := l.storage.Components()[compIdx]
	if cs.Channels(chType).NumChannels() <= 1 || rowIdx < 0 {
		return nil
	}

	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)
	if err := encodeRow(&enc, cs, chType, rowIdx); err != nil {
		return err
	}

	_, err := l.file.Write(enc.Bytes())
	return err
}

func (l *LineProtocolBackend) Flush() error {
	return l.file.Sync()
}

func (l *LineProtocolBackend) Finish() error {
	return l.file.Close()
}
