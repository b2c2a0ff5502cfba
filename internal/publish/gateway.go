// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package publish delivers aggregate records over a pub/sub transport.
//
// Connection states: Disconnected -> (connect ok) -> Connected; Connected ->
// (transport drop) -> Disconnected; a failed connect stays Disconnected and
// is retried after a fixed delay. There is no closing state.
package publish

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/imu"
)

var (
	// ErrDisconnected is returned by transports asked to publish while down.
	ErrDisconnected = errors.New("publish: transport disconnected")
	// ErrPublish wraps a failed single publish attempt.
	ErrPublish = errors.New("publish: publish failed")
)

// Transport is the pub/sub client the gateway drives.
type Transport interface {
	Connected() bool
	Connect(clientID string) error
	Publish(topic string, payload []byte) error
	// Loop services transport housekeeping; called once per cycle.
	Loop()
}

// Outcome is the result of one Publish call. Failures is the number of
// consecutive failed publishes including this one, 0 after a success.
type Outcome struct {
	OK       bool
	Failures int
	Bytes    int
	Err      error
}

// Options configures a Gateway.
type Options struct {
	Topic          string
	ClientIDPrefix string
	ReconnectDelay time.Duration
	Seed           int64 // client id randomness; 0 seeds from the clock
}

// Gateway wraps a Transport with reconnect and failure accounting.
type Gateway struct {
	t        Transport
	opts     Options
	rng      *rand.Rand
	failures int
}

func NewGateway(t Transport, opts Options) *Gateway {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Gateway{t: t, opts: opts, rng: rand.New(rand.NewSource(seed))}
}

// Connected reports the transport state.
func (g *Gateway) Connected() bool {
	return g.t.Connected()
}

// Loop forwards to the transport's housekeeping.
func (g *Gateway) Loop() {
	g.t.Loop()
}

// Failures returns the current consecutive publish failure count.
func (g *Gateway) Failures() int {
	return g.failures
}

func (g *Gateway) newClientID() string {
	return fmt.Sprintf("%s%x", g.opts.ClientIDPrefix, g.rng.Intn(0xffff))
}

// EnsureConnected returns at once when the transport is up. Otherwise it
// connects with a fresh random client id, waiting ReconnectDelay between
// attempts, until a connect succeeds. With a context that is never
// cancelled this can block forever; onWaiting (may be nil) is called after
// each failed attempt so the caller can report liveness.
func (g *Gateway) EnsureConnected(ctx context.Context, onWaiting func(attempt int, err error)) error {
	for attempt := 1; !g.t.Connected(); attempt++ {
		id := g.newClientID()
		log.Printf("attempting MQTT connection as %s...", id)
		err := g.t.Connect(id)
		if err == nil {
			log.Printf("MQTT connected as %s", id)
			return nil
		}
		log.WithField("attempt", attempt).Printf("MQTT connect failed: %v; retrying in %s", err, g.opts.ReconnectDelay)
		if onWaiting != nil {
			onWaiting(attempt, err)
		}
		if err := wait(ctx, g.opts.ReconnectDelay); err != nil {
			return fmt.Errorf("%w: %w", ErrDisconnected, err)
		}
	}
	return nil
}

// Publish makes exactly one publish attempt for rec. It never retries;
// the next cycle's EnsureConnected is the only recovery path.
func (g *Gateway) Publish(rec *imu.Record) Outcome {
	payload := rec.Encode()
	log.Debugf("payload size: %d", len(payload))
	log.Debugf("publishing: %s", payload)

	if err := g.t.Publish(g.opts.Topic, payload); err != nil {
		g.failures++
		log.Printf("MQTT publish failed (attempt %d): %v", g.failures, err)
		return Outcome{Failures: g.failures, Bytes: len(payload), Err: fmt.Errorf("%w: %v", ErrPublish, err)}
	}
	g.failures = 0
	return Outcome{OK: true, Bytes: len(payload)}
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
