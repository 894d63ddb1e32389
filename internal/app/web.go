// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/compass_calibration/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSEvent is the message pushed to browser monitors.
type WSEvent struct {
	Type   string         `json:"type"` // sample, result
	Sample *SamplePayload `json:"sample,omitempty"`
	Result *ResultPayload `json:"result,omitempty"`
}

// webState fans the MQTT calibration feed out to websocket clients and
// keeps the latest values for the JSON API.
type webState struct {
	mu         sync.RWMutex
	lastSample SamplePayload
	haveSample bool
	lastResult ResultPayload
	haveResult bool

	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

func (st *webState) broadcast(ev WSEvent) {
	st.connMu.Lock()
	defer st.connMu.Unlock()
	for conn := range st.conns {
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			delete(st.conns, conn)
		}
	}
}

// RunWeb serves the browser monitor: a websocket stream of the live
// calibration feed plus a JSON snapshot endpoint and static files.
func RunWeb() error {
	cfg := config.Get()
	st := &webState{conns: map[*websocket.Conn]struct{}{}}

	clientID := cfg.MQTTClientIDWeb
	if clientID == "" {
		clientID = "compass-web"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	smpToken := client.Subscribe(sampleTopic(cfg), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s SamplePayload
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: sample unmarshal error: %v", err)
			return
		}
		st.mu.Lock()
		st.lastSample = s
		st.haveSample = true
		st.mu.Unlock()
		st.broadcast(WSEvent{Type: "sample", Sample: &s})
	})
	smpToken.Wait()
	if smpToken.Error() != nil {
		return smpToken.Error()
	}
	log.Printf("web: subscribed to %s", sampleTopic(cfg))

	resToken := client.Subscribe(resultTopic(cfg), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r ResultPayload
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: result unmarshal error: %v", err)
			return
		}
		st.mu.Lock()
		st.lastResult = r
		st.haveResult = true
		st.mu.Unlock()
		st.broadcast(WSEvent{Type: "result", Result: &r})
	})
	resToken.Wait()
	if resToken.Error() != nil {
		return resToken.Error()
	}
	log.Printf("web: subscribed to %s", resultTopic(cfg))

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		st.connMu.Lock()
		st.conns[conn] = struct{}{}
		st.connMu.Unlock()

		// Drain (and ignore) client messages; a read error means the
		// client went away.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					st.connMu.Lock()
					delete(st.conns, conn)
					st.connMu.Unlock()
					conn.Close()
					return
				}
			}
		}()
	})

	http.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
		st.mu.RLock()
		defer st.mu.RUnlock()

		if !st.haveSample && !st.haveResult {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		snapshot := struct {
			Sample *SamplePayload `json:"sample,omitempty"`
			Result *ResultPayload `json:"result,omitempty"`
		}{}
		if st.haveSample {
			s := st.lastSample
			snapshot.Sample = &s
		}
		if st.haveResult {
			r := st.lastResult
			snapshot.Result = &r
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	port := cfg.WebServerPort
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
