// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/config"
	"github.com/relabs-tech/motion_glove/internal/imu"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// clientBuffer is how many payloads a slow websocket client may lag behind
// before it starts missing records.
const clientBuffer = 16

// Relay keeps the latest record and fans raw payloads out to websocket
// clients.
type Relay struct {
	mu      sync.RWMutex
	latest  []byte
	clients map[chan []byte]struct{}
}

func NewRelay() *Relay {
	return &Relay{clients: map[chan []byte]struct{}{}}
}

// Broadcast validates payload as an aggregate record and forwards it.
func (r *Relay) Broadcast(payload []byte) {
	if _, err := imu.Decode(payload); err != nil {
		log.Printf("web: dropping malformed payload: %v", err)
		return
	}
	msg := append([]byte(nil), payload...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = msg
	for ch := range r.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Clients returns the number of connected websocket clients.
func (r *Relay) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Relay) join() chan []byte {
	ch := make(chan []byte, clientBuffer)
	r.mu.Lock()
	r.clients[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

func (r *Relay) leave(ch chan []byte) {
	r.mu.Lock()
	delete(r.clients, ch)
	r.mu.Unlock()
}

// HandleLatest serves the most recent record.
func (r *Relay) HandleLatest(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	latest := r.latest
	r.mu.RUnlock()

	if latest == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(latest)
}

// HandleWS streams every relayed payload as a text message.
func (r *Relay) HandleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := r.join()
	defer r.leave(ch)

	// Reader goroutine only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

// Handler routes the relay endpoints and static files from ./web.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/latest", r.HandleLatest)
	mux.HandleFunc("/ws", r.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb subscribes to the glove topic and serves the relay.
func RunWeb(cfg *config.Config) error {
	relay := NewRelay()
	client, err := subscribe(cfg.BrokerURL(), cfg.MQTTClientIDWeb, cfg.MQTTTopic, relay.Broadcast)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, relay.Handler())
}
