package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/motion_glove/internal/sim"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

var testPins = []string{"GPIO16", "GPIO5", "GPIO4", "GPIO0"}

func TestScanFindsWiredPairAnywhereInOrder(t *testing.T) {
	for i := range testPins {
		for j := range testPins {
			if i == j {
				continue
			}
			t.Run(fmt.Sprintf("%d_%d", i, j), func(t *testing.T) {
				g := sim.NewGlove(0x70, 0x68)
				g.WirePins(testPins[i], testPins[j])
				r := NewRouter(g, testPins, 0x70)
				pair, err := r.Scan()
				if err != nil {
					t.Fatal(err)
				}
				if pair.SDA != i || pair.SCL != j {
					t.Errorf("got %v (%d,%d), want (%d,%d)", pair, pair.SDA, pair.SCL, i, j)
				}
				if pair.SDAName != testPins[i] || pair.SCLName != testPins[j] {
					t.Errorf("names = %s", pair)
				}
			})
		}
	}
}

func TestScanOrderSkipsIdenticalPins(t *testing.T) {
	var tried []string
	opener := OpenerFunc(func(sda, scl string) (i2c.BusCloser, error) {
		tried = append(tried, sda+">"+scl)
		return nackBus{}, nil
	})
	r := NewRouter(opener, []string{"A", "B", "C"}, 0x70)
	if _, err := r.Scan(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	want := []string{"A>B", "A>C", "B>A", "B>C", "C>A", "C>B"}
	if fmt.Sprint(tried) != fmt.Sprint(want) {
		t.Errorf("probe order = %v, want %v", tried, want)
	}
}

func TestScanFirstAcknowledgingPairWins(t *testing.T) {
	g := sim.NewGlove(0x70, 0x68)
	r := NewRouter(g, testPins, 0x70)
	pair, err := r.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if pair.SDA != 0 || pair.SCL != 1 {
		t.Errorf("pair = (%d,%d), want (0,1)", pair.SDA, pair.SCL)
	}
}

func TestScanSkipsOpenErrors(t *testing.T) {
	g := sim.NewGlove(0x70, 0x68)
	opener := OpenerFunc(func(sda, scl string) (i2c.BusCloser, error) {
		if sda == "GPIO16" {
			return nil, errors.New("pin busy")
		}
		return g.Open(sda, scl)
	})
	pair, err := NewRouter(opener, testPins, 0x70).Scan()
	if err != nil {
		t.Fatal(err)
	}
	if pair.SDAName != "GPIO5" || pair.SCLName != "GPIO16" {
		t.Errorf("pair = %s", pair)
	}
}

func TestDiscoverNeverReturnsWrongPair(t *testing.T) {
	g := sim.NewGlove(0x70, 0x68)
	g.WirePins("GPIO99", "GPIO98")
	r := NewRouter(g, testPins, 0x70, WithRetryDelay(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	waits := 0
	pair, err := r.Discover(ctx, func(int) { waits++ })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline", err)
	}
	if pair != (PinPair{}) {
		t.Errorf("pair = %+v, want zero", pair)
	}
	if waits == 0 {
		t.Error("onWaiting never called")
	}
	if _, ok := r.Pair(); ok {
		t.Error("router reports a pair after failed discovery")
	}
}

func TestDiscoverRetriesUntilHardwareAppears(t *testing.T) {
	g := sim.NewGlove(0x70, 0x68)
	g.WirePins("nowhere", "nowhere")
	r := NewRouter(g, testPins, 0x70)
	var attempts []int
	pair, err := r.Discover(context.Background(), func(n int) {
		attempts = append(attempts, n)
		if n == 3 {
			g.WirePins("GPIO4", "GPIO0")
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if pair.SDA != 2 || pair.SCL != 3 {
		t.Errorf("pair = %+v", pair)
	}
	if fmt.Sprint(attempts) != "[1 2 3]" {
		t.Errorf("attempts = %v", attempts)
	}
}

func TestSelectChannelWritesOneHot(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x70},                  // discovery probe
			{Addr: 0x70, W: []byte{0x04}}, // channel 2
			{Addr: 0x70, W: []byte{0x80}}, // channel 7
			{Addr: 0x70, W: []byte{0x01}}, // channel 0
		},
	}
	r := NewRouter(OpenerFunc(func(string, string) (i2c.BusCloser, error) { return pb, nil }), testPins, 0x70)
	if _, err := r.Scan(); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []int{2, 7, 0} {
		if err := r.SelectChannel(ch); err != nil {
			t.Fatalf("SelectChannel(%d): %v", ch, err)
		}
		if r.Active() != ch {
			t.Errorf("Active() = %d, want %d", r.Active(), ch)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSelectChannelRejectsOutOfRange(t *testing.T) {
	g := sim.NewGlove(0x70, 0x68)
	r := NewRouter(g, testPins, 0x70)
	if _, err := r.Scan(); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []int{8, 9, 255, -1} {
		if err := r.SelectChannel(ch); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("SelectChannel(%d) = %v", ch, err)
		}
	}
	if g.Selects() != 0 {
		t.Errorf("multiplexer received %d writes", g.Selects())
	}
}

func TestSelectBeforeDiscovery(t *testing.T) {
	r := NewRouter(sim.NewGlove(0x70, 0x68), testPins, 0x70)
	if err := r.SelectChannel(1); !errors.Is(err, ErrNoBus) {
		t.Errorf("err = %v, want ErrNoBus", err)
	}
}

// probeOnlyBus acknowledges the address-only probe and nothing else.
type probeOnlyBus struct{}

func (probeOnlyBus) String() string                    { return "probe-only" }
func (probeOnlyBus) SetSpeed(f physic.Frequency) error { return nil }
func (probeOnlyBus) Close() error                      { return nil }
func (probeOnlyBus) Tx(addr uint16, w, r []byte) error {
	if len(w) == 0 && len(r) == 0 {
		return nil
	}
	return errors.New("nack")
}

type nackBus struct{}

func (nackBus) String() string                    { return "nack" }
func (nackBus) SetSpeed(f physic.Frequency) error { return nil }
func (nackBus) Close() error                      { return nil }
func (nackBus) Tx(addr uint16, w, r []byte) error { return errors.New("nack") }

func TestSelectAcknowledgementPolicy(t *testing.T) {
	open := OpenerFunc(func(string, string) (i2c.BusCloser, error) { return probeOnlyBus{}, nil })

	lenient := NewRouter(open, testPins, 0x70)
	if _, err := lenient.Scan(); err != nil {
		t.Fatal(err)
	}
	if err := lenient.SelectChannel(3); err != nil {
		t.Errorf("lenient select = %v, want nil", err)
	}
	if lenient.Active() != -1 {
		t.Errorf("Active() = %d after failed select", lenient.Active())
	}

	strict := NewRouter(open, testPins, 0x70, WithStrictSelect(true))
	if _, err := strict.Scan(); err != nil {
		t.Fatal(err)
	}
	if err := strict.SelectChannel(3); !errors.Is(err, ErrChannelSelect) {
		t.Errorf("strict select = %v, want ErrChannelSelect", err)
	}
}

func TestDoIsAtomic(t *testing.T) {
	g := sim.NewGlove(0x70, 0x68)
	r := NewRouter(g, testPins, 0x70)
	if _, err := r.Scan(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8*50)
	for ch := 0; ch <= MaxChannel; ch++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				err := r.Do(ch, func(i2c.Bus) error {
					if got := g.Control(); got != 1<<uint(ch) {
						return fmt.Errorf("channel %d saw control 0x%02X", ch, got)
					}
					return nil
				})
				if err != nil {
					errs <- err
				}
			}
		}(ch)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
