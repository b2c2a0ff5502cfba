// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/bus"
	"github.com/relabs-tech/motion_glove/internal/config"
	"github.com/relabs-tech/motion_glove/internal/sensors"
)

// RunBusScan finds the multiplexer, then reports WHO_AM_I and a register
// dump for every configured channel. Nothing is written to the sensors.
func RunBusScan(ctx context.Context, cfg *config.Config, opener bus.Opener, out io.Writer) error {
	router := bus.NewRouter(opener, cfg.BusCandidatePins, cfg.MuxAddr,
		bus.WithStrictSelect(cfg.StrictChannelSelect),
		bus.WithRetryDelay(config.Millis(cfg.BusRetryDelay)),
	)
	defer router.Close()

	pair, err := router.Discover(ctx, func(attempt int) {
		log.WithField("attempt", attempt).Warn("no I2C multiplexer found, retrying...")
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "multiplexer 0x%02X on SDA:%s SCL:%s (%s)\n",
		cfg.MuxAddr, cfg.PinLabel(pair.SDA), cfg.PinLabel(pair.SCL), pair)

	bank := sensors.NewBank(router, cfg.Channels(), sensors.BankConfig{Addr: cfg.IMUAddr})
	for _, ch := range bank.Channels() {
		ok, err := bank.Probe(ch)
		switch {
		case err != nil:
			fmt.Fprintf(out, "channel %d: no response: %v\n", ch, err)
			continue
		case !ok:
			fmt.Fprintf(out, "channel %d: unexpected WHO_AM_I\n", ch)
		default:
			fmt.Fprintf(out, "channel %d: MPU6050 at 0x%02X\n", ch, cfg.IMUAddr)
		}

		regs, err := bank.DumpRegisters(ch)
		if err != nil {
			fmt.Fprintf(out, "  register dump failed: %v\n", err)
			continue
		}
		for _, r := range regs {
			if r.Err != nil {
				fmt.Fprintf(out, "  0x%02X %-14s read error: %v\n", r.Info.Address, r.Info.Name, r.Err)
				continue
			}
			fmt.Fprintf(out, "  0x%02X %-14s 0x%02X\n", r.Info.Address, r.Info.Name, r.Value)
		}
	}
	return nil
}
