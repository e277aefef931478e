// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package runtimeEnv

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads the environment variables of the given .env file into the
// process environment. A missing file is reported with the os.Stat error,
// so the caller decides whether it matters.
func LoadEnv(file string) error {
	if _, err := os.Stat(file); err != nil {
		return err
	}

	vars, err := godotenv.Read(file)
	if err != nil {
		return fmt.Errorf("parsing '%s' failed: %w", file, err)
	}

	for key, value := range vars {
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}

	return nil
}

// SystemdNotify sends a message to the systemd notification socket when the
// process runs under systemd; a no-op otherwise.
func SystemdNotify(ready bool, status string) {
	socket := os.Getenv("NOTIFY_SOCKET")
	if socket == "" {
		return
	}

	msg := ""
	if ready {
		msg = "READY=1\n"
	}
	if status != "" {
		msg += "STATUS=" + status + "\n"
	}

	// best effort; systemd ignores malformed senders anyway
	if conn, err := notifyConn(socket); err == nil {
		defer conn.Close()
		conn.Write([]byte(msg))
	}
}
