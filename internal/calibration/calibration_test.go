package calibration

import (
	"errors"
	"testing"

	"github.com/relabs-tech/motion_glove/internal/imu"
)

// scriptedReader returns samples[n] on the n-th read of any channel.
type scriptedReader struct {
	samples []imu.MotionSample
	reads   map[int]int
	failAt  int
}

func (r *scriptedReader) ReadSlot(ch int) (imu.MotionSample, error) {
	if r.reads == nil {
		r.reads = map[int]int{}
	}
	n := r.reads[ch]
	r.reads[ch]++
	if r.failAt > 0 && n == r.failAt {
		return imu.MotionSample{}, errors.New("nack")
	}
	return r.samples[n%len(r.samples)], nil
}

func TestCalibrateConstantStream(t *testing.T) {
	c := imu.MotionSample{Ax: 312, Ay: -87, Az: 8201, Gx: -14, Gy: 22, Gz: 0}
	r := &scriptedReader{samples: []imu.MotionSample{c}}
	got, err := NewEngine(r, 100).Calibrate(5)
	if err != nil {
		t.Fatal(err)
	}
	if got != c {
		t.Errorf("bias = %+v, want %+v", got, c)
	}
	if r.reads[5] != 100 {
		t.Errorf("reads = %d, want 100", r.reads[5])
	}
}

func TestCalibrateTruncatesTowardZero(t *testing.T) {
	// 99 samples of 0 and one of ±150: mean ±1.5 truncates to ±1.
	// 50 samples of -3 and 50 of 0: mean -1.5 truncates to -1, not -2.
	samples := make([]imu.MotionSample, 100)
	for i := range samples {
		if i < 50 {
			samples[i].Gx = -3
		}
	}
	samples[0].Ax = 150
	samples[0].Ay = -150
	samples[99].Az = -199 // -1.99 -> -1

	got, err := NewEngine(&scriptedReader{samples: samples}, 100).Calibrate(2)
	if err != nil {
		t.Fatal(err)
	}
	want := imu.Bias{Ax: 1, Ay: -1, Az: -1, Gx: -1}
	if got != want {
		t.Errorf("bias = %+v, want %+v", got, want)
	}
}

func TestCalibrateNoOverflowAtExtremes(t *testing.T) {
	hi := imu.MotionSample{Ax: 32767, Ay: -32768, Az: 32767, Gx: -32768, Gy: 32767, Gz: -32768}
	got, err := NewEngine(&scriptedReader{samples: []imu.MotionSample{hi}}, 100).Calibrate(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != hi {
		t.Errorf("bias = %+v, want %+v", got, hi)
	}
}

func TestCalibrateReadError(t *testing.T) {
	_, err := NewEngine(&scriptedReader{samples: []imu.MotionSample{{}}, failAt: 40}, 100).Calibrate(1)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNewEngineDefaultSamples(t *testing.T) {
	r := &scriptedReader{samples: []imu.MotionSample{{}}}
	if _, err := NewEngine(r, 0).Calibrate(3); err != nil {
		t.Fatal(err)
	}
	if r.reads[3] != DefaultSamples {
		t.Errorf("reads = %d, want %d", r.reads[3], DefaultSamples)
	}
}

func TestTable(t *testing.T) {
	var tab Table
	tab.Set(3, imu.Bias{Ax: 9})
	tab.Set(8, imu.Bias{Ax: 1})
	if tab.Get(3).Ax != 9 {
		t.Errorf("Get(3) = %+v", tab.Get(3))
	}
	for _, ch := range []int{0, 7, 8, -1} {
		if tab.Get(ch) != (imu.Bias{}) {
			t.Errorf("Get(%d) = %+v, want zero", ch, tab.Get(ch))
		}
	}
}
