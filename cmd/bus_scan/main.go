// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/motion_glove/internal/app"
	"github.com/relabs-tech/motion_glove/internal/bus"
)

func _main(cmd *cobra.Command, args []string) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, closer, err := app.Bootstrap(configPath, debug)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	defer closer.Close()

	opener, err := bus.NewGPIOOpener(cfg.BusSpeedKHz)
	if err != nil {
		log.Fatalf("failed to initialize GPIO: %v", err)
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := app.RunBusScan(ctx, cfg, opener, os.Stdout); err != nil {
		log.Fatalf("bus scan: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bus_scan",
	Short: "find the I2C multiplexer and dump every sensor's registers",
	Run: func(cmd *cobra.Command, args []string) {
		_main(cmd, args)
	},
}

func main() {
	rootCmd.Flags().String("config", "glove_config.txt", "configuration file path, empty for built-in defaults")
	rootCmd.Flags().Bool("debug", false, "toggle debug logging")
	rootCmd.Flags().Duration("timeout", 30*time.Second, "give up discovery after this long, 0 waits forever")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
