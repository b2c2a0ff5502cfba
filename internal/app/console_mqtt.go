// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/config"
	"github.com/relabs-tech/motion_glove/internal/imu"
)

// Console prints every aggregate record it is handed and optionally keeps
// them for a recording.
type Console struct {
	out    io.Writer
	record bool

	mu      sync.Mutex
	records []*imu.Record
	bad     int
}

func NewConsole(out io.Writer, record bool) *Console {
	return &Console{out: out, record: record}
}

// HandlePayload decodes one published payload and prints a row per channel.
func (c *Console) HandlePayload(payload []byte) {
	rec, err := imu.Decode(payload)
	if err != nil {
		c.mu.Lock()
		c.bad++
		c.mu.Unlock()
		log.Printf("console: record unmarshal error: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range rec.Entries() {
		s := e.Sample
		fmt.Fprintf(c.out, "[IMU-%d] ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d\n",
			e.Channel, s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz)
	}
	if c.record {
		c.records = append(c.records, rec)
	}
}

// Records returns how many records were kept and how many payloads were rejected.
func (c *Console) Records() (kept, rejected int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records), c.bad
}

// WriteRecording writes the kept records to path as a JSON array.
func (c *Console) WriteRecording(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.records
	if recs == nil {
		recs = []*imu.Record{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RunConsoleMQTT prints records from the broker until interrupted. A
// non-empty recordPath saves everything received on shutdown.
func RunConsoleMQTT(cfg *config.Config, recordPath string) error {
	console := NewConsole(os.Stdout, recordPath != "")
	client, err := subscribe(cfg.BrokerURL(), cfg.MQTTClientIDConsole, cfg.MQTTTopic, console.HandlePayload)
	if err != nil {
		return err
	}

	waitForSignal()
	log.Println("console: shutting down")
	client.Disconnect(250)

	if recordPath == "" {
		return nil
	}
	kept, rejected := console.Records()
	log.Printf("console: writing %d records to %s (%d rejected)", kept, recordPath, rejected)
	return console.WriteRecording(recordPath)
}
