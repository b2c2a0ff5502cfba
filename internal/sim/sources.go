package sim

import (
	"math"
	"math/rand"

	"github.com/relabs-tech/motion_glove/internal/imu"
)

// Constant always returns s.
func Constant(s imu.MotionSample) Source {
	return func(int) imu.MotionSample { return s }
}

// Sequence returns samples in order, repeating the slice.
func Sequence(samples ...imu.MotionSample) Source {
	return func(n int) imu.MotionSample { return samples[n%len(samples)] }
}

// Wave generates a hand at rest near base for the first restReads samples,
// then smooth finger motion with a little noise. Deterministic for a seed.
func Wave(base imu.MotionSample, restReads int, seed int64) Source {
	rng := rand.New(rand.NewSource(seed))
	return func(n int) imu.MotionSample {
		noise := func() int16 { return int16(rng.Intn(7) - 3) }
		s := imu.MotionSample{
			Ax: base.Ax + noise(),
			Ay: base.Ay + noise(),
			Az: base.Az + noise(),
			Gx: base.Gx + noise(),
			Gy: base.Gy + noise(),
			Gz: base.Gz + noise(),
		}
		if n < restReads {
			return s
		}
		t := float64(n-restReads) / 40
		s.Ax += int16(2000 * math.Sin(t))
		s.Ay += int16(1500 * math.Cos(t*0.7))
		s.Gx += int16(800 * math.Cos(t))
		s.Gz += int16(300 * math.Sin(t*1.3))
		return s
	}
}
