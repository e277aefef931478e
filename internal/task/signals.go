// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package task

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

var interrupted atomic.Bool

// RegisterSignalHandler converts SIGINT/SIGTERM into a flag polled at every
// synchronisation-step boundary. In-flight steps run to completion.
func RegisterSignalHandler() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigs {
			if interrupted.Swap(true) {
				continue
			}
			cclog.Warn("Simulation interrupted; stopping at the next synchronization step")
		}
	}()
}

// Interrupted reports whether a stop was requested.
func Interrupted() bool {
	return interrupted.Load()
}
