// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus owns the glove's shared I2C bus: it finds the GPIO pair the
// bus is wired to and routes transactions through the TCA9548A multiplexer.
//
// The bus, the multiplexer and every sensor behind it form one exclusively
// owned resource. All access goes through Router, whose lock makes each
// select-then-transfer sequence atomic.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

// MaxChannel is the highest multiplexer channel.
const MaxChannel = 7

var (
	// ErrNotFound means no candidate pin pair acknowledged the multiplexer.
	ErrNotFound = errors.New("bus: multiplexer not found on any pin pair")
	// ErrInvalidChannel is returned for channel ids outside 0-7. Nothing is written.
	ErrInvalidChannel = errors.New("bus: invalid multiplexer channel")
	// ErrChannelSelect is returned by strict routers when the select write fails.
	ErrChannelSelect = errors.New("bus: channel select not acknowledged")
	// ErrNoBus is returned when the router is used before discovery.
	ErrNoBus = errors.New("bus: not discovered")
)

// Opener opens an I2C bus with sda as data line and scl as clock line.
type Opener interface {
	Open(sda, scl string) (i2c.BusCloser, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(sda, scl string) (i2c.BusCloser, error)

func (f OpenerFunc) Open(sda, scl string) (i2c.BusCloser, error) { return f(sda, scl) }

// PinPair is a discovered (data, clock) assignment. SDA and SCL index the
// candidate pin list.
type PinPair struct {
	SDA     int
	SCL     int
	SDAName string
	SCLName string
}

func (p PinPair) String() string {
	return fmt.Sprintf("SDA:%s SCL:%s", p.SDAName, p.SCLName)
}

// Router discovers the bus and selects multiplexer channels.
type Router struct {
	opener     Opener
	pins       []string
	muxAddr    uint16
	strict     bool
	retryDelay time.Duration

	mu     sync.Mutex
	bus    i2c.BusCloser
	pair   PinPair
	found  bool
	active int
}

// Option configures a Router.
type Option func(*Router)

// WithStrictSelect makes SelectChannel report failed select writes.
func WithStrictSelect(strict bool) Option {
	return func(r *Router) { r.strict = strict }
}

// WithRetryDelay sets the pause between full discovery scans.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Router) { r.retryDelay = d }
}

// NewRouter returns a router probing pins in order for a multiplexer at muxAddr.
func NewRouter(opener Opener, pins []string, muxAddr uint16, opts ...Option) *Router {
	r := &Router{
		opener:  opener,
		pins:    append([]string(nil), pins...),
		muxAddr: muxAddr,
		active:  -1,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Scan makes one pass over every ordered pin pair (i, j), i != j, i outer
// and j inner, both ascending. The first pair whose bus acknowledges a
// zero-length transaction to the multiplexer is kept open and returned.
func (r *Router) Scan() (PinPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.found {
		return r.pair, nil
	}

	for i := range r.pins {
		for j := range r.pins {
			if i == j {
				continue
			}
			b, err := r.opener.Open(r.pins[i], r.pins[j])
			if err != nil {
				log.WithFields(log.Fields{"sda": r.pins[i], "scl": r.pins[j]}).Debugf("bus: open failed: %v", err)
				continue
			}
			if err := b.Tx(r.muxAddr, nil, nil); err != nil {
				b.Close()
				continue
			}
			r.bus = b
			r.found = true
			r.active = -1
			r.pair = PinPair{SDA: i, SCL: j, SDAName: r.pins[i], SCLName: r.pins[j]}
			return r.pair, nil
		}
	}
	return PinPair{}, ErrNotFound
}

// Discover repeats Scan until a pair answers. With a background context it
// blocks forever while no hardware responds; onWaiting (may be nil) is
// called after every failed pass with the pass number so callers can show
// liveness.
func (r *Router) Discover(ctx context.Context, onWaiting func(attempt int)) (PinPair, error) {
	for attempt := 1; ; attempt++ {
		pair, err := r.Scan()
		if err == nil {
			return pair, nil
		}
		if onWaiting != nil {
			onWaiting(attempt)
		}
		if err := wait(ctx, r.retryDelay); err != nil {
			return PinPair{}, errors.Join(ErrNotFound, err)
		}
	}
}

// Pair returns the discovered pin pair.
func (r *Router) Pair() (PinPair, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pair, r.found
}

// SelectChannel routes the bus to channel ch by writing 1<<ch to the
// multiplexer control register. Write failures are only reported by strict
// routers; the default mirrors the fire-and-forget select of the glove.
func (r *Router) SelectChannel(ch int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectLocked(ch)
}

func (r *Router) selectLocked(ch int) error {
	if ch < 0 || ch > MaxChannel {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	if !r.found {
		return ErrNoBus
	}
	if err := r.bus.Tx(r.muxAddr, []byte{1 << uint(ch)}, nil); err != nil {
		r.active = -1
		if r.strict {
			return fmt.Errorf("%w: channel %d: %v", ErrChannelSelect, ch, err)
		}
		log.WithField("channel", ch).Debugf("bus: channel select not acknowledged: %v", err)
		return nil
	}
	r.active = ch
	return nil
}

// Do selects ch and runs fn with the bus while holding the router lock, so
// no other caller can re-route the multiplexer between the two.
func (r *Router) Do(ch int, fn func(b i2c.Bus) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.selectLocked(ch); err != nil {
		return err
	}
	return fn(r.bus)
}

// Active returns the last successfully selected channel, or -1.
func (r *Router) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Close releases the discovered bus.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.found {
		return nil
	}
	r.found = false
	r.active = -1
	return r.bus.Close()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
