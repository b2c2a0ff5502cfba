// Package acquisition runs one read-correct-encode pass over the glove.
package acquisition

import (
	"errors"

	"github.com/relabs-tech/motion_glove/internal/calibration"
	"github.com/relabs-tech/motion_glove/internal/imu"
)

// Cycle visits every populated channel in ascending order.
type Cycle struct {
	reader   imu.MotionReader
	channels []int
	bias     calibration.Table
}

// NewCycle copies channels and bias; neither changes once acquisition runs.
func NewCycle(reader imu.MotionReader, channels []int, bias calibration.Table) *Cycle {
	return &Cycle{
		reader:   reader,
		channels: append([]int(nil), channels...),
		bias:     bias,
	}
}

// Run reads each channel, subtracts its bias and returns the full record.
// A failed read contributes a zero raw sample so the record always covers
// every channel; the failures are returned joined for logging.
func (c *Cycle) Run() (*imu.Record, error) {
	rec := imu.NewRecord(len(c.channels))
	var errs []error
	for _, ch := range c.channels {
		raw, err := c.reader.ReadSlot(ch)
		if err != nil {
			errs = append(errs, err)
			raw = imu.MotionSample{}
		}
		rec.Set(ch, raw.Sub(c.bias.Get(ch)))
	}
	return rec, errors.Join(errs...)
}

// Channels returns the channels this cycle visits.
func (c *Cycle) Channels() []int {
	return append([]int(nil), c.channels...)
}
