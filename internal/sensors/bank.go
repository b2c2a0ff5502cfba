// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/bus"
	"github.com/relabs-tech/motion_glove/internal/imu"
	"periph.io/x/conn/v3/i2c"
)

// ErrNotReady means a sensor failed its health check during initialization.
var ErrNotReady = errors.New("sensors: sensor not ready")

var (
	accelRangeG   = []int{2, 4, 8, 16}
	gyroRangeDegS = []int{250, 500, 1000, 2000}
)

// BankConfig is shared by every slot: all sensors on the glove are identical.
type BankConfig struct {
	Addr       uint16
	GyroRange  byte
	AccelRange byte
	ResetDelay time.Duration
	// AbortOnInitFailure turns a failed health check into an error instead
	// of a logged warning.
	AbortOnInitFailure bool
}

// Bank owns the sensor slots behind the multiplexer. Every operation on a
// slot runs inside Router.Do, so the channel select and the sensor
// transfer cannot be separated.
type Bank struct {
	router   *bus.Router
	cfg      BankConfig
	channels []int
	ready    map[int]bool
}

// NewBank returns a bank for the given populated channels.
func NewBank(router *bus.Router, channels []int, cfg BankConfig) *Bank {
	return &Bank{
		router:   router,
		cfg:      cfg,
		channels: append([]int(nil), channels...),
		ready:    make(map[int]bool, len(channels)),
	}
}

// Channels returns the populated channels in ascending order.
func (b *Bank) Channels() []int {
	return append([]int(nil), b.channels...)
}

// Ready reports the health check result recorded by InitializeSlot.
func (b *Bank) Ready(ch int) bool {
	return b.ready[ch]
}

func (b *Bank) device(i2cBus i2c.Bus) *MPU6050 {
	return NewMPU6050(i2cBus, b.cfg.Addr, b.cfg.ResetDelay)
}

// InitializeSlot resets the sensor on ch, applies the full-scale ranges and
// runs the health check. A failed check is logged and the slot stays in
// service unless AbortOnInitFailure is set.
func (b *Bank) InitializeSlot(ch int) (bool, error) {
	var ok bool
	err := b.router.Do(ch, func(i2cBus i2c.Bus) error {
		dev := b.device(i2cBus)
		if err := dev.Initialize(); err != nil {
			return err
		}
		if err := dev.SetGyroRange(b.cfg.GyroRange); err != nil {
			return err
		}
		log.Printf("sensor %d: gyroscope range set to %d (±%d°/s)", ch, b.cfg.GyroRange, gyroRangeDegS[b.cfg.GyroRange&3])
		if err := dev.SetAccelRange(b.cfg.AccelRange); err != nil {
			return err
		}
		log.Printf("sensor %d: accelerometer range set to %d (±%dg)", ch, b.cfg.AccelRange, accelRangeG[b.cfg.AccelRange&3])
		var err error
		ok, err = dev.TestConnection()
		return err
	})
	if errors.Is(err, bus.ErrInvalidChannel) || errors.Is(err, bus.ErrNoBus) {
		return false, err
	}

	b.ready[ch] = ok && err == nil
	if b.ready[ch] {
		log.Printf("sensor %d: MPU6050 connection successful", ch)
		return true, nil
	}

	if err == nil {
		err = fmt.Errorf("%w: channel %d: WHO_AM_I mismatch", ErrNotReady, ch)
	} else {
		err = fmt.Errorf("%w: channel %d: %v", ErrNotReady, ch, err)
	}
	if b.cfg.AbortOnInitFailure {
		return false, err
	}
	log.WithField("channel", ch).Warnf("sensor %d: MPU6050 connection failed, continuing: %v", ch, err)
	return false, nil
}

// ReadSlot selects ch and returns one raw 6-axis burst.
func (b *Bank) ReadSlot(ch int) (imu.MotionSample, error) {
	var s imu.MotionSample
	err := b.router.Do(ch, func(i2cBus i2c.Bus) error {
		var err error
		s, err = b.device(i2cBus).Motion6()
		return err
	})
	if err != nil {
		return imu.MotionSample{}, fmt.Errorf("sensor %d: %w", ch, err)
	}
	return s, nil
}

// RegisterValue is one entry of DumpRegisters.
type RegisterValue struct {
	Info  RegisterInfo
	Value byte
	Err   error
}

// DumpRegisters reads every register in MPU6050RegisterMap from ch.
func (b *Bank) DumpRegisters(ch int) ([]RegisterValue, error) {
	regs := MPU6050RegisterMap()
	out := make([]RegisterValue, len(regs))
	err := b.router.Do(ch, func(i2cBus i2c.Bus) error {
		dev := b.device(i2cBus)
		for i, info := range regs {
			v, err := dev.ReadRegister(info.Address)
			out[i] = RegisterValue{Info: info, Value: v, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Probe runs the WHO_AM_I health check on ch without resetting the sensor.
func (b *Bank) Probe(ch int) (bool, error) {
	var ok bool
	err := b.router.Do(ch, func(i2cBus i2c.Bus) error {
		var err error
		ok, err = b.device(i2cBus).TestConnection()
		return err
	})
	return ok, err
}
