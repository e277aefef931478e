// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// cc-cosim is a co-simulation master: it reads a model file describing a
// network of simulation elements, orders them along their data
// dependencies, advances them with the configured coupling method and
// stores the sampled port values through the configured result backends.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/ClusterCockpit/cc-cosim/internal/monitoring"
	"github.com/ClusterCockpit/cc-cosim/internal/reader"
	"github.com/ClusterCockpit/cc-cosim/internal/runtimeEnv"
	"github.com/ClusterCockpit/cc-cosim/internal/task"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/gops/agent"
)

const version = "1.0.0"

func main() {
	cliInit()

	if flagVersion {
		fmt.Printf("Version:\t%s\n", version)
		if info, ok := debug.ReadBuildInfo(); ok {
			fmt.Printf("Go Version:\t%s\n", info.GoVersion)
		}
		os.Exit(0)
	}

	cclog.Init(flagLogLevel, flagLogDateTime)

	// See https://github.com/google/gops (runtime overhead is almost zero)
	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Abortf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		cclog.Abortf("parsing './.env' file failed: %s", err.Error())
	}

	if err := run(); err != nil {
		cclog.Errorf("%s", err.Error())
		os.Exit(1)
	}
}

func run() error {
	input, err := reader.Read(flagModelFile)
	if err != nil {
		return err
	}

	m, componentResults, err := reader.BuildModel(input)
	if err != nil {
		return err
	}

	t := task.New()
	if err := t.Read(&input.Task, &input.Results, flagResultDir); err != nil {
		return err
	}
	t.SetComponentResults(componentResults)

	if err := t.Setup(m); err != nil {
		return err
	}
	if err := m.Setup(); err != nil {
		return err
	}
	if err := t.PrepareRun(m); err != nil {
		return err
	}

	monitoringAddr := flagMonitoring
	if monitoringAddr == "" {
		monitoringAddr = input.Monitoring
	}
	if monitoringAddr != "" {
		mon, err := monitoring.Start(monitoringAddr, t, m)
		if err != nil {
			return err
		}
		defer mon.Stop()
	}

	task.RegisterSignalHandler()
	runtimeEnv.SystemdNotify(true, "running")
	defer runtimeEnv.SystemdNotify(false, "shutting down")

	return t.Run(m)
}
