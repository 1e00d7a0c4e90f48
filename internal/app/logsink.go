// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/latency_tester/internal/latency"
)

// MQTTSink publishes every successful sample and the end-of-session
// summary. It satisfies latency.LogSink. Publishing happens between
// measurements, never inside the timed window.
type MQTTSink struct {
	client        mqtt.Client
	topicSamples  string
	topicSessions string
	seq           uint64
}

type samplePayload struct {
	Seq     uint64          `json:"seq"`
	Channel latency.Channel `json:"channel"`
	Ms      float32         `json:"ms"`
	Time    string          `json:"time"`
}

// NewMQTTSink connects to the broker. Callers treat a connect failure as
// non-fatal: measuring works without telemetry.
func NewMQTTSink(broker, clientID, topicSamples, topicSessions string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("logsink: connected to MQTT broker at %s", broker)
	return &MQTTSink{
		client:        client,
		topicSamples:  topicSamples,
		topicSessions: topicSessions,
	}, nil
}

// Append publishes one sample on the per-channel subtopic.
func (s *MQTTSink) Append(ch latency.Channel, sampleMs float32) {
	s.seq++
	payload, err := json.Marshal(samplePayload{
		Seq:     s.seq,
		Channel: ch,
		Ms:      sampleMs,
		Time:    time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("logsink: sample marshal error: %v", err)
		return
	}
	if token := s.client.Publish(s.topicSamples+"/"+ch.String(), 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("logsink: sample publish error: %v", token.Error())
	}
}

// Flush publishes the retained session summary.
func (s *MQTTSink) Flush(meta latency.SessionMeta) {
	payload, err := json.Marshal(meta)
	if err != nil {
		log.Printf("logsink: session marshal error: %v", err)
		return
	}
	if token := s.client.Publish(s.topicSessions, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("logsink: session publish error: %v", token.Error())
	}
	log.Printf("logsink: session flushed: mode=%s runs=%d", meta.Mode, meta.Runs)
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
