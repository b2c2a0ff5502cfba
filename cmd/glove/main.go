// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/motion_glove/internal/app"
	"github.com/relabs-tech/motion_glove/internal/bus"
	"github.com/relabs-tech/motion_glove/internal/config"
	"github.com/relabs-tech/motion_glove/internal/imu"
	"github.com/relabs-tech/motion_glove/internal/netlink"
	"github.com/relabs-tech/motion_glove/internal/publish"
	"github.com/relabs-tech/motion_glove/internal/sim"
)

func mockGlove(cfg *config.Config) *sim.Glove {
	hw := sim.NewGlove(cfg.MuxAddr, cfg.IMUAddr)
	rest := imu.MotionSample{Az: 8192}
	for _, ch := range cfg.Channels() {
		hw.Attach(ch, sim.Wave(rest, cfg.CalibrationSamples, int64(ch)))
	}
	return hw
}

func _main(cmd *cobra.Command, args []string) int {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	mock, _ := cmd.Flags().GetBool("mock")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, closer, err := app.Bootstrap(configPath, debug)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return 1
	}
	defer closer.Close()

	var deps app.Deps
	if mock {
		log.Println("using simulated glove hardware")
		deps.Opener = mockGlove(cfg)
	} else {
		opener, err := bus.NewGPIOOpener(cfg.BusSpeedKHz)
		if err != nil {
			log.Errorf("failed to initialize GPIO: %v", err)
			return 1
		}
		deps.Opener = opener
	}
	if cfg.NetInterface != "" {
		deps.Link = netlink.Interface{Iface: cfg.NetInterface}
	}
	if dryRun {
		deps.Transport = &publish.WriterTransport{W: os.Stdout}
	} else {
		paho := publish.NewPahoTransport(cfg.BrokerURL(), config.Millis(cfg.MQTTConnectTimeout))
		defer paho.Close()
		deps.Transport = paho
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGlove(ctx, cfg, deps); err != nil {
		log.Errorf("fatal: %v", err)
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "glove",
	Short: "motion glove firmware",
	Long:  "glove discovers the sensor bus, calibrates every IMU and publishes corrected readings over MQTT",
	Run: func(cmd *cobra.Command, args []string) {
		if code := _main(cmd, args); code != 0 {
			os.Exit(code)
		}
	},
}

func main() {
	rootCmd.Flags().String("config", "glove_config.txt", "configuration file path, empty for built-in defaults")
	rootCmd.Flags().Bool("debug", false, "toggle debug logging")
	rootCmd.Flags().Bool("mock", false, "use simulated sensors instead of GPIO")
	rootCmd.Flags().Bool("dry-run", false, "print payloads to stdout instead of publishing")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
