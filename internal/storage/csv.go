// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
)

// CsvBackend writes one file per element and channel class into the result
// directory: "<element>.<class-suffix>.csv", comma separated, LF
// terminated, header "name [unit]", time column first. Doubles are encoded
// as %.13E.
type CsvBackend struct {
	storeAtRuntime bool
	directory      string

	storage *ResultsStorage
	files   map[string]*csvFile
}

type csvFile struct {
	f *os.File
	w *bufio.Writer
}

func NewCsvBackend(input schema.BackendInput) *CsvBackend {
	return &CsvBackend{
		storeAtRuntime: input.StoreAtRuntime,
		directory:      input.Directory,
		files:          make(map[string]*csvFile),
	}
}

func (c *CsvBackend) Setup(s *ResultsStorage) error {
	c.storage = s
	if c.directory == "" {
		c.directory = s.ResultDir()
	}
	return os.MkdirAll(c.directory, 0o755)
}

func (c *CsvBackend) StoreAtRuntime() bool {
	return c.storeAtRuntime
}

func (c *CsvBackend) fileFor(cs *ComponentStorage, chType schema.ChannelStoreType) (*csvFile, error) {
	name := fmt.Sprintf("%s.%s.csv", cs.Component().Name(), chType.FileSuffix())
	if file, ok := c.files[name]; ok {
		return file, nil
	}

	f, err := os.Create(filepath.Join(c.directory, name))
	if err != nil {
		return nil, fmt.Errorf("results: could not create '%s': %w", name, err)
	}
	file := &csvFile{f: f, w: bufio.NewWriter(f)}
	c.files[name] = file

	channels := cs.Channels(chType)
	for i := 0; i < channels.NumChannels(); i++ {
		if i > 0 {
			file.w.WriteByte(',')
		}
		info := channels.ChannelInfo(i)
		unit := info.Unit
		if unit == "" {
			unit = "-"
		}
		fmt.Fprintf(file.w, "%s [%s]", info.Name, unit)
	}
	file.w.WriteByte('\n')

	return file, nil
}

func (c *CsvBackend) StoreRow(compIdx int, chType schema.ChannelStoreType, rowIdx int) error {
	cs := c.storage.Components()[compIdx]
	channels := cs.Channels(chType)
	if channels.NumChannels() <= 1 || rowIdx < 0 {
		return nil
	}

	file, err := c.fileFor(cs, chType)
	if err != nil {
		return err
	}

	for col := 0; col < channels.NumChannels(); col++ {
		if col > 0 {
			file.w.WriteByte(',')
		}
		val := channels.ValueAt(rowIdx, col)
		file.w.WriteString(val.String())
	}
	file.w.WriteByte('\n')

	return nil
}

func (c *CsvBackend) Flush() error {
	for _, file := range c.files {
		if err := file.w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (c *CsvBackend) Finish() error {
	var firstErr error
	for _, file := range c.files {
		if err := file.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := file.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.files = make(map[string]*csvFile)
	return firstErr
}
