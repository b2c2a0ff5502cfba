// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/acquisition"
	"github.com/relabs-tech/motion_glove/internal/bus"
	"github.com/relabs-tech/motion_glove/internal/calibration"
	"github.com/relabs-tech/motion_glove/internal/config"
	"github.com/relabs-tech/motion_glove/internal/metrics"
	"github.com/relabs-tech/motion_glove/internal/netlink"
	"github.com/relabs-tech/motion_glove/internal/publish"
	"github.com/relabs-tech/motion_glove/internal/sensors"
)

// sensorResetDelay is how long a sensor gets after a device reset.
var sensorResetDelay = 100 * time.Millisecond

// Deps are the hardware and network edges of the glove.
type Deps struct {
	Opener    bus.Opener
	Transport publish.Transport
	Metrics   *metrics.Metrics

	// Link is waited on before anything else; nil skips the wait.
	Link netlink.Link
}

// Glove runs setup once and then the acquire/publish loop.
type Glove struct {
	cfg     *config.Config
	deps    Deps
	metrics *metrics.Metrics

	router  *bus.Router
	bank    *sensors.Bank
	bias    calibration.Table
	cycle   *acquisition.Cycle
	gateway *publish.Gateway
}

func NewGlove(cfg *config.Config, deps Deps) *Glove {
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Glove{cfg: cfg, deps: deps, metrics: m}
}

// Setup brings the glove from power-on to ready: network, bus discovery,
// sensor initialization and calibration, then the settle delay.
func (g *Glove) Setup(ctx context.Context) error {
	cfg := g.cfg

	if g.deps.Link != nil {
		_, err := netlink.Wait(ctx, g.deps.Link, config.Millis(cfg.NetPollInterval), func(attempt int) {
			log.WithField("attempt", attempt).Debug(".")
		})
		if err != nil {
			return err
		}
	}

	g.gateway = publish.NewGateway(g.deps.Transport, publish.Options{
		Topic:          cfg.MQTTTopic,
		ClientIDPrefix: cfg.MQTTClientIDPrefix,
		ReconnectDelay: config.Millis(cfg.ReconnectDelay),
	})
	log.Printf("MQTT broker set to %s, topic %s", cfg.BrokerURL(), cfg.MQTTTopic)

	g.router = bus.NewRouter(g.deps.Opener, cfg.BusCandidatePins, cfg.MuxAddr,
		bus.WithStrictSelect(cfg.StrictChannelSelect),
		bus.WithRetryDelay(config.Millis(cfg.BusRetryDelay)),
	)
	log.Println("scanning for I2C devices...")
	pair, err := g.router.Discover(ctx, func(attempt int) {
		log.WithField("attempt", attempt).Warn("no I2C multiplexer found, retrying...")
	})
	if err != nil {
		return err
	}
	log.Printf("Connection to multiplexer found on SDA:%s SCL:%s", cfg.PinLabel(pair.SDA), cfg.PinLabel(pair.SCL))

	channels := cfg.Channels()
	g.bank = sensors.NewBank(g.router, channels, sensors.BankConfig{
		Addr:               cfg.IMUAddr,
		GyroRange:          byte(cfg.IMUGyroRange),
		AccelRange:         byte(cfg.IMUAccelRange),
		ResetDelay:         sensorResetDelay,
		AbortOnInitFailure: cfg.SensorInitPolicy == config.InitPolicyAbort,
	})

	engine := calibration.NewEngine(g.bank, cfg.CalibrationSamples)
	for _, ch := range channels {
		log.Printf("initializing sensor %d", ch)
		if _, err := g.bank.InitializeSlot(ch); err != nil {
			return fmt.Errorf("sensor %d: %w", ch, err)
		}
		log.Printf("calibrating sensor %d, keep the glove still", ch)
		bias, err := engine.Calibrate(ch)
		if err != nil {
			log.WithField("channel", ch).Errorf("calibration failed, using zero bias: %v", err)
			continue
		}
		g.bias.Set(ch, bias)
	}
	g.cycle = acquisition.NewCycle(g.bank, channels, g.bias)
	g.metrics.Channels.Set(float64(len(channels)))

	log.Printf("setup complete, settling for %s", config.Millis(cfg.SetupSettle))
	return sleep(ctx, config.Millis(cfg.SetupSettle))
}

// Step runs one loop iteration without the trailing cycle delay. A cycle
// only starts once the transport is connected.
func (g *Glove) Step(ctx context.Context) (publish.Outcome, error) {
	if g.cycle == nil {
		return publish.Outcome{}, errors.New("app: Step before Setup")
	}
	err := g.gateway.EnsureConnected(ctx, func(int, error) {
		g.metrics.ReconnectAttempts.Inc()
	})
	if err != nil {
		return publish.Outcome{}, err
	}
	g.gateway.Loop()

	rec, err := g.cycle.Run()
	if err != nil {
		g.metrics.ReadErrors.Add(float64(countErrors(err)))
		log.Warnf("cycle read errors: %v", err)
	}
	g.metrics.Cycles.Inc()

	out := g.gateway.Publish(rec)
	g.metrics.ObservePublish(out)
	return out, nil
}

// Run loops until ctx is cancelled.
func (g *Glove) Run(ctx context.Context) error {
	delay := config.Millis(g.cfg.CycleDelay)
	for {
		if _, err := g.Step(ctx); err != nil {
			return err
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Bias returns the calibration table recorded by Setup.
func (g *Glove) Bias() calibration.Table {
	return g.bias
}

// Bank returns the sensor bank built by Setup.
func (g *Glove) Bank() *sensors.Bank {
	return g.bank
}

func (g *Glove) Close() error {
	if g.router == nil {
		return nil
	}
	return g.router.Close()
}

// RunGlove is the firmware entry point: setup, then loop until ctx ends.
func RunGlove(ctx context.Context, cfg *config.Config, deps Deps) error {
	log.Println("starting motion glove")

	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if cfg.MetricsAddr != "" {
		srv := deps.Metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	g := NewGlove(cfg, deps)
	defer g.Close()

	if err := g.Setup(ctx); err != nil {
		return err
	}
	err := g.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Println("motion glove stopped")
		return nil
	}
	return err
}

func countErrors(err error) int {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return len(j.Unwrap())
	}
	return 1
}

func sleep(ctx context.Context, d time.Duration) error {
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
