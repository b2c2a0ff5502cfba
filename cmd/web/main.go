// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/motion_glove/internal/app"
)

func _main(cmd *cobra.Command, args []string) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, closer, err := app.Bootstrap(configPath, debug)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	defer closer.Close()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.WebServerPort = port
	}

	log.Println("starting glove web relay (MQTT subscriber)")
	if err := app.RunWeb(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "web",
	Short: "relay glove records to websocket clients",
	Run: func(cmd *cobra.Command, args []string) {
		_main(cmd, args)
	},
}

func main() {
	rootCmd.Flags().String("config", "glove_config.txt", "configuration file path, empty for built-in defaults")
	rootCmd.Flags().Bool("debug", false, "toggle debug logging")
	rootCmd.Flags().IntP("port", "p", 0, "HTTP port, overrides WEB_SERVER_PORT")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
