// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bitbang"
	"periph.io/x/host/v3"
)

// GPIOOpener bit-bangs I2C over any two GPIO lines, so every candidate pin
// pair can be tried without a fixed hardware controller.
type GPIOOpener struct {
	Speed physic.Frequency
}

// NewGPIOOpener initializes the periph host drivers.
func NewGPIOOpener(speedKHz int) (*GPIOOpener, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("bus: periph host init: %w", err)
	}
	return &GPIOOpener{Speed: physic.Frequency(speedKHz) * physic.KiloHertz}, nil
}

func (o *GPIOOpener) Open(sda, scl string) (i2c.BusCloser, error) {
	sdaPin := gpioreg.ByName(sda)
	if sdaPin == nil {
		return nil, fmt.Errorf("bus: SDA pin %q not found", sda)
	}
	sclPin := gpioreg.ByName(scl)
	if sclPin == nil {
		return nil, fmt.Errorf("bus: SCL pin %q not found", scl)
	}
	b, err := bitbang.New(sclPin, sdaPin, o.Speed)
	if err != nil {
		return nil, fmt.Errorf("bus: bitbang I2C (%s/%s): %w", sda, scl, err)
	}
	return b, nil
}
