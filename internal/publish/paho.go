// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package publish

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

var errTimeout = errors.New("timed out")

// PahoTransport is a Transport backed by the Eclipse paho client. Paho's
// own auto-reconnect is disabled so the gateway alone decides when and
// under which client id to reconnect.
type PahoTransport struct {
	broker  string
	timeout time.Duration
	client  mqtt.Client
}

// NewPahoTransport points the transport at broker ("tcp://host:port").
func NewPahoTransport(broker string, timeout time.Duration) *PahoTransport {
	return &PahoTransport{broker: broker, timeout: timeout}
}

func (p *PahoTransport) Connected() bool {
	return p.client != nil && p.client.IsConnected()
}

func (p *PahoTransport) Connect(clientID string) error {
	if p.client != nil {
		p.client.Disconnect(0)
		p.client = nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(p.broker).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(p.timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("MQTT connect to %s: %w", p.broker, errTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect to %s: %w", p.broker, err)
	}
	p.client = client
	return nil
}

func (p *PahoTransport) Publish(topic string, payload []byte) error {
	if !p.Connected() {
		return ErrDisconnected
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("MQTT publish to %s: %w", topic, errTimeout)
	}
	return token.Error()
}

// Loop is a no-op: paho services keep-alives on its own goroutines.
func (p *PahoTransport) Loop() {}

// Close disconnects, giving in-flight messages 250ms.
func (p *PahoTransport) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
}
