// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/relabs-tech/motion_glove/internal/imu"
	"periph.io/x/conn/v3/i2c"
)

const (
	pwrDeviceReset = 0x80
	clockPLLXGyro  = 0x01
	fsMask         = 0x18
	whoAmIID       = 0x34
)

// MPU6050 talks to one MPU-6050 over whatever bus routing is active.
// It keeps no state of its own, so a fresh value per transaction is fine.
type MPU6050 struct {
	dev        i2c.Dev
	resetDelay time.Duration
}

// NewMPU6050 returns a driver for the sensor at addr on b.
func NewMPU6050(b i2c.Bus, addr uint16, resetDelay time.Duration) *MPU6050 {
	return &MPU6050{dev: i2c.Dev{Bus: b, Addr: addr}, resetDelay: resetDelay}
}

// Initialize resets the device and wakes it on the X gyro PLL clock.
func (m *MPU6050) Initialize() error {
	if err := m.WriteRegister(RegPwrMgmt1, pwrDeviceReset); err != nil {
		return fmt.Errorf("mpu6050: reset: %w", err)
	}
	if m.resetDelay > 0 {
		time.Sleep(m.resetDelay)
	}
	if err := m.WriteRegister(RegPwrMgmt1, clockPLLXGyro); err != nil {
		return fmt.Errorf("mpu6050: wake: %w", err)
	}
	return nil
}

// SetGyroRange sets FS_SEL (0=±250°/s .. 3=±2000°/s).
func (m *MPU6050) SetGyroRange(fs byte) error {
	return m.setFullScale(RegGyroConfig, fs)
}

// SetAccelRange sets AFS_SEL (0=±2g .. 3=±16g).
func (m *MPU6050) SetAccelRange(fs byte) error {
	return m.setFullScale(RegAccelConfig, fs)
}

func (m *MPU6050) setFullScale(reg, fs byte) error {
	if fs > 3 {
		return fmt.Errorf("mpu6050: full scale index %d out of range", fs)
	}
	v, err := m.ReadRegister(reg)
	if err != nil {
		return fmt.Errorf("mpu6050: read 0x%02X: %w", reg, err)
	}
	v = v&^fsMask | fs<<3
	if err := m.WriteRegister(reg, v); err != nil {
		return fmt.Errorf("mpu6050: write 0x%02X: %w", reg, err)
	}
	return nil
}

// TestConnection reports whether WHO_AM_I identifies an MPU-6050.
func (m *MPU6050) TestConnection() (bool, error) {
	v, err := m.ReadRegister(RegWhoAmI)
	if err != nil {
		return false, fmt.Errorf("mpu6050: WHO_AM_I: %w", err)
	}
	return (v>>1)&0x3F == whoAmIID, nil
}

// Motion6 burst-reads accelerometer, temperature and gyroscope registers
// and returns the six motion axes as raw counts.
func (m *MPU6050) Motion6() (imu.MotionSample, error) {
	var buf [14]byte
	if err := m.dev.Tx([]byte{RegAccelXOutH}, buf[:]); err != nil {
		return imu.MotionSample{}, fmt.Errorf("mpu6050: motion burst: %w", err)
	}
	word := func(i int) int16 { return int16(binary.BigEndian.Uint16(buf[i:])) }
	return imu.MotionSample{
		Ax: word(0),
		Ay: word(2),
		Az: word(4),
		// 6-7 is TEMP_OUT
		Gx: word(8),
		Gy: word(10),
		Gz: word(12),
	}, nil
}

func (m *MPU6050) ReadRegister(reg byte) (byte, error) {
	var r [1]byte
	if err := m.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

func (m *MPU6050) WriteRegister(reg, v byte) error {
	return m.dev.Tx([]byte{reg, v}, nil)
}
