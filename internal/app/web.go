// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/latency_tester/internal/latency"
)

// wsMessage is the envelope pushed to websocket clients.
type wsMessage struct {
	Type string        `json:"type"`
	Data latency.Frame `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// StatsServer mirrors engine frames to HTTP and websocket clients. It
// satisfies latency.Display, so the app chains it behind the OLED with a
// fan-out; the engine itself never learns the web exists.
type StatsServer struct {
	mu        sync.RWMutex
	lastFrame latency.Frame
	haveFrame bool
	lastPush  time.Time

	clientMu sync.RWMutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
}

func NewStatsServer() *StatsServer {
	return &StatsServer{
		clients:  make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Render stores the latest frame and pushes it to subscribers at a tame
// rate (the engine renders every loop pass).
func (s *StatsServer) Render(f latency.Frame) {
	s.mu.Lock()
	s.lastFrame = f
	s.haveFrame = true
	push := time.Since(s.lastPush) >= 100*time.Millisecond
	if push {
		s.lastPush = time.Now()
	}
	s.mu.Unlock()

	if push {
		s.broadcast(wsMessage{Type: "frame", Data: f})
	}
}

func (s *StatsServer) broadcast(msg wsMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for c := range s.clients {
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, b)
		c.mu.Unlock()
	}
}

// ListenAndServe exposes /api/frame (latest snapshot) and /ws (push feed).
func (s *StatsServer) ListenAndServe(port int) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/frame", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if !s.haveFrame {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.lastFrame); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: upgrade error: %v", err)
			return
		}
		c := &wsClient{conn: conn}
		s.clientMu.Lock()
		s.clients[c] = struct{}{}
		s.clientMu.Unlock()
		log.Printf("web: websocket client connected from %s", r.RemoteAddr)

		// Reader loop only exists to notice the close.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					s.clientMu.Lock()
					delete(s.clients, c)
					s.clientMu.Unlock()
					_ = conn.Close()
					return
				}
			}
		}()
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("web: stats server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
