// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import "flag"

var (
	flagGops, flagVersion, flagLogDateTime                     bool
	flagModelFile, flagResultDir, flagLogLevel, flagMonitoring string
)

func cliInit() {
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagVersion, "version", false, "Show version information and exit")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Set this flag to add date and time to log messages")
	flag.StringVar(&flagModelFile, "model", "./model.json", "Specify the path to the `model.json` file to simulate")
	flag.StringVar(&flagResultDir, "result-dir", "", "Overwrite the result directory of the model file")
	flag.StringVar(&flagMonitoring, "monitoring", "", "Serve /metrics and /status on this `address` (for example ':8090')")
	flag.StringVar(&flagLogLevel, "loglevel", "warn", "Sets the logging level: `[debug, info, warn, err, crit]`")
	flag.Parse()
}
