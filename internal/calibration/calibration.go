// Package calibration computes per-channel zero-offset biases.
//
// The sensor must be stationary while Calibrate runs. Nothing checks that:
// a glove that moves during calibration gets a wrong bias and keeps it,
// since biases are computed once at startup and never revisited.
package calibration

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/imu"
)

// DefaultSamples is how many raw reads are averaged per channel.
const DefaultSamples = 100

// Engine averages raw samples into a Bias.
type Engine struct {
	reader  imu.MotionReader
	samples int
}

// NewEngine returns an engine reading n samples per channel (DefaultSamples if n <= 0).
func NewEngine(reader imu.MotionReader, n int) *Engine {
	if n <= 0 {
		n = DefaultSamples
	}
	return &Engine{reader: reader, samples: n}
}

// Calibrate reads the configured number of samples from ch and returns the
// per-axis mean, truncated toward zero.
func (e *Engine) Calibrate(ch int) (imu.Bias, error) {
	var acc [6]int64
	for i := 0; i < e.samples; i++ {
		s, err := e.reader.ReadSlot(ch)
		if err != nil {
			return imu.Bias{}, fmt.Errorf("calibrate channel %d sample %d: %w", ch, i, err)
		}
		for axis, v := range s.Array() {
			acc[axis] += int64(v)
		}
	}

	var mean [6]int16
	for axis := range acc {
		mean[axis] = int16(acc[axis] / int64(e.samples))
	}
	bias := imu.FromArray(mean)
	log.Printf("sensor %d calibrated: bias %s", ch, bias)
	return bias, nil
}

// Table holds one bias per multiplexer channel. Channels that were never
// calibrated keep a zero bias.
type Table [8]imu.Bias

// Get returns the bias for ch, zero when ch is out of range.
func (t *Table) Get(ch int) imu.Bias {
	if ch < 0 || ch >= len(t) {
		return imu.Bias{}
	}
	return t[ch]
}

// Set stores the bias for ch.
func (t *Table) Set(ch int, b imu.Bias) {
	if ch >= 0 && ch < len(t) {
		t[ch] = b
	}
}
