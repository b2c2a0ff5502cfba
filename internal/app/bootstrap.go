// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/config"
	"github.com/relabs-tech/motion_glove/internal/logging"
)

// Bootstrap loads the configuration at path (defaults when empty) and sets
// up logging from it. debug forces the debug level. Close the returned
// closer on exit.
func Bootstrap(path string, debug bool) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	closer, err := logging.Setup(logging.Options{
		Level:      level,
		SerialPort: cfg.LogSerialPort,
		SerialBaud: cfg.LogSerialBaud,
	})
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		log.Printf("configuration loaded from %s", path)
	}
	return cfg, closer, nil
}
