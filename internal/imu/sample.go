// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// MotionSample is one raw 6-axis reading in ADC counts.
type MotionSample struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Bias is the averaged rest-state reading of one channel.
type Bias = MotionSample

// Sub returns s - b per axis. Arithmetic wraps at the int16 boundary.
func (s MotionSample) Sub(b Bias) MotionSample {
	return MotionSample{
		Ax: s.Ax - b.Ax,
		Ay: s.Ay - b.Ay,
		Az: s.Az - b.Az,
		Gx: s.Gx - b.Gx,
		Gy: s.Gy - b.Gy,
		Gz: s.Gz - b.Gz,
	}
}

// Array returns the wire order [accX, accY, accZ, gyrX, gyrY, gyrZ].
func (s MotionSample) Array() [6]int16 {
	return [6]int16{s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz}
}

// FromArray is the inverse of Array.
func FromArray(a [6]int16) MotionSample {
	return MotionSample{Ax: a[0], Ay: a[1], Az: a[2], Gx: a[3], Gy: a[4], Gz: a[5]}
}

func (s MotionSample) String() string {
	return fmt.Sprintf("ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d", s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz)
}

// MotionReader is anything that yields raw samples for a channel.
type MotionReader interface {
	ReadSlot(ch int) (MotionSample, error)
}
