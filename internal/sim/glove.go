// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim models the glove hardware on a periph I2C bus: a TCA9548A
// multiplexer with MPU-6050 sensors hanging off some of its channels.
package sim

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync"

	"github.com/relabs-tech/motion_glove/internal/imu"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// MPU-6050 registers the model understands.
const (
	regAccelXOutH = 0x3B
	regPwrMgmt1   = 0x6B
	regWhoAmI     = 0x75

	whoAmI = 0x68
)

// Source yields the n-th raw sample of a sensor (n counts from 0).
type Source func(n int) imu.MotionSample

// Glove is a simulated bus. It implements i2c.BusCloser and bus.Opener.
type Glove struct {
	MuxAddr uint16
	IMUAddr uint16

	mu      sync.Mutex
	sda     string
	scl     string
	control byte
	sensors map[int]*sensor
	selects int
}

type sensor struct {
	regs    [128]byte
	source  Source
	reads   int
	healthy bool
}

// NewGlove returns a glove with nothing attached that answers on any pin pair.
func NewGlove(muxAddr, imuAddr uint16) *Glove {
	return &Glove{MuxAddr: muxAddr, IMUAddr: imuAddr, sensors: map[int]*sensor{}}
}

// WirePins restricts the multiplexer to answer only when opened with this
// exact (sda, scl) pair.
func (g *Glove) WirePins(sda, scl string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sda, g.scl = sda, scl
}

// Attach places a healthy sensor on channel ch.
func (g *Glove) Attach(ch int, src Source) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &sensor{source: src, healthy: true}
	s.reset()
	g.sensors[ch] = s
}

// SetHealthy makes the sensor on ch report a wrong WHO_AM_I.
func (g *Glove) SetHealthy(ch int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s := g.sensors[ch]; s != nil {
		s.healthy = ok
	}
}

// Reads returns how many burst reads the sensor on ch has served.
func (g *Glove) Reads(ch int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s := g.sensors[ch]; s != nil {
		return s.reads
	}
	return 0
}

// Register returns the current value of a sensor register.
func (g *Glove) Register(ch int, reg byte) byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s := g.sensors[ch]; s != nil {
		return s.regs[reg&0x7F]
	}
	return 0
}

// Control returns the multiplexer control register.
func (g *Glove) Control() byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.control
}

// Selects returns how many control writes the multiplexer has received.
func (g *Glove) Selects() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selects
}

// Open implements bus.Opener.
func (g *Glove) Open(sda, scl string) (i2c.BusCloser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sda != "" && (sda != g.sda || scl != g.scl) {
		return deadBus{name: sda + "/" + scl}, nil
	}
	return g, nil
}

func (g *Glove) String() string                   { return "sim-glove" }
func (g *Glove) SetSpeed(f physic.Frequency) error { return nil }
func (g *Glove) Close() error                      { return nil }

// Tx implements i2c.Bus.
func (g *Glove) Tx(addr uint16, w, r []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch addr {
	case g.MuxAddr:
		if len(w) > 0 {
			g.control = w[len(w)-1]
			g.selects++
		}
		if len(r) > 0 {
			r[0] = g.control
		}
		return nil
	case g.IMUAddr:
		s, err := g.routed()
		if err != nil {
			return err
		}
		return s.tx(w, r)
	default:
		return fmt.Errorf("sim: no ack from 0x%02X", addr)
	}
}

func (g *Glove) routed() (*sensor, error) {
	if bits.OnesCount8(g.control) != 1 {
		return nil, fmt.Errorf("sim: mux control 0x%02X routes %d channels", g.control, bits.OnesCount8(g.control))
	}
	ch := bits.TrailingZeros8(g.control)
	s := g.sensors[ch]
	if s == nil {
		return nil, fmt.Errorf("sim: no sensor on channel %d", ch)
	}
	return s, nil
}

func (s *sensor) reset() {
	s.regs = [128]byte{}
	s.regs[regPwrMgmt1] = 0x40 // sleep
}

func (s *sensor) tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	reg := w[0] & 0x7F
	for i, v := range w[1:] {
		at := (int(reg) + i) & 0x7F
		if at == regPwrMgmt1 && v&0x80 != 0 {
			s.reset()
			continue
		}
		s.regs[at] = v
	}
	if len(r) == 0 {
		return nil
	}
	if reg == regAccelXOutH && len(r) >= 14 {
		var m imu.MotionSample
		if s.source != nil {
			m = s.source(s.reads)
		}
		s.reads++
		words := []int16{m.Ax, m.Ay, m.Az, 0, m.Gx, m.Gy, m.Gz}
		for i, v := range words {
			binary.BigEndian.PutUint16(r[i*2:], uint16(v))
		}
		return nil
	}
	for i := range r {
		at := (int(reg) + i) & 0x7F
		if at == regWhoAmI {
			if s.healthy {
				r[i] = whoAmI
			} else {
				r[i] = 0x00
			}
			continue
		}
		r[i] = s.regs[at]
	}
	return nil
}

// deadBus is what a wrong pin pair looks like: nothing ever acknowledges.
type deadBus struct{ name string }

func (d deadBus) String() string                   { return "sim-dead-" + d.name }
func (d deadBus) SetSpeed(f physic.Frequency) error { return nil }
func (d deadBus) Close() error                      { return nil }
func (d deadBus) Tx(addr uint16, w, r []byte) error {
	return fmt.Errorf("sim: no ack from 0x%02X on %s", addr, d.name)
}
