// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"fmt"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/nats-io/nats.go"
)

// NatsBackend publishes every stored row as line protocol to
// "<subject>.<element>.<class>". It is always a runtime backend.
type NatsBackend struct {
	address string
	subject string
	creds   string

	storage *ResultsStorage
	conn    *nats.Conn
}

func NewNatsBackend(input schema.BackendInput) *NatsBackend {
	b := &NatsBackend{
		address: input.Address,
		subject: input.Subject,
		creds:   input.Creds,
	}
	if b.address == "" {
		b.address = nats.DefaultURL
	}
	if b.subject == "" {
		b.subject = "cosim.results"
	}
	return b
}

func (n *NatsBackend) Setup(s *ResultsStorage) error {
	n.storage = s

	opts := []nats.Option{nats.Name("cc-cosim results")}
	if n.creds != "" {
		opts = append(opts, nats.UserCredentials(n.creds))
	}

	conn, err := nats.Connect(n.address, opts...)
	if err != nil {
		return fmt.Errorf("results: could not connect to NATS at '%s': %w", n.address, err)
	}
	n.conn = conn

	cclog.Infof("[STORAGE]> NATS backend publishing to '%s' on %s", n.subject, n.address)
	return nil
}

// StoreAtRuntime is always true: buffering rows until the end of a run
// defeats a message bus.
func (n *NatsBackend) StoreAtRuntime() bool {
	return true
}

func (n *NatsBackend) StoreRow(compIdx int, chType schema.ChannelStoreType, rowIdx int) error {
	cs := n.storage.Components()[compIdx]
	if cs.Channels(chType).NumChannels() <= 1 || rowIdx < 0 {
		return nil
	}

	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)
	if err := encodeRow(&enc, cs, chType, rowIdx); err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.%s.%s", n.subject, cs.Component().Name(), chType.FileSuffix())
	return n.conn.Publish(subject, enc.Bytes())
}

func (n *NatsBackend) Flush() error {
	return n.conn.Flush()
}

func (n *NatsBackend) Finish() error {
	err := n.conn.Flush()
	n.conn.Close()
	return err
}
