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
	record, _ := cmd.Flags().GetString("record")

	cfg, closer, err := app.Bootstrap(configPath, debug)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	defer closer.Close()

	log.Println("starting glove console (MQTT subscriber)")
	if err := app.RunConsoleMQTT(cfg, record); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "console_mqtt",
	Short: "print glove records from the broker",
	Run: func(cmd *cobra.Command, args []string) {
		_main(cmd, args)
	},
}

func main() {
	rootCmd.Flags().String("config", "glove_config.txt", "configuration file path, empty for built-in defaults")
	rootCmd.Flags().Bool("debug", false, "toggle debug logging")
	rootCmd.Flags().String("record", "", "write received records to this file as a JSON array on exit")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
