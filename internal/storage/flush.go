// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"
)

// FlushService periodically flushes the runtime backends during long runs,
// so tailing a result file or subscribing to the bus sees fresh data.
type FlushService struct {
	scheduler gocron.Scheduler
}

// StartFlushService schedules a flush of the runtime backends every
// interval. An empty interval string defaults to 5s.
func StartFlushService(rs *ResultsStorage, interval string) (*FlushService, error) {
	d := 5 * time.Second
	if interval != "" {
		parsed, err := time.ParseDuration(interval)
		if err != nil {
			cclog.Warnf("[STORAGE]> Could not parse flush interval '%s': %s", interval, err.Error())
		} else if parsed > 0 {
			d = parsed
		}
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(func() {
			if err := rs.Flush(); err != nil {
				cclog.Warnf("[STORAGE]> Periodic flush failed: %s", err.Error())
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return &FlushService{scheduler: s}, nil
}

// Stop shuts the flush scheduler down.
func (f *FlushService) Stop() {
	if err := f.scheduler.Shutdown(); err != nil {
		cclog.Warnf("[STORAGE]> Flush scheduler shutdown: %s", err.Error())
	}
}
