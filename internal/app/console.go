// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/latency_tester/internal/config"
	"github.com/relabs-tech/latency_tester/internal/latency"
)

// RunConsole subscribes to the tester's MQTT topics and prints every
// sample and session summary, for watching a run from a desk instead of
// over the OLED.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	sampleToken := client.Subscribe(cfg.TopicSamples+"/#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s struct {
			Seq     uint64  `json:"seq"`
			Channel string  `json:"channel"`
			Ms      float32 `json:"ms"`
			Time    string  `json:"time"`
		}
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: sample unmarshal error: %v", err)
			return
		}
		fmt.Printf("[SAMPLE ] #%-5d %-11s %7.3f ms\n", s.Seq, s.Channel, s.Ms)
	})
	sampleToken.Wait()
	if sampleToken.Error() != nil {
		return sampleToken.Error()
	}
	log.Printf("console: subscribed to %s/#", cfg.TopicSamples)

	sessionToken := client.Subscribe(cfg.TopicSessions, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var meta latency.SessionMeta
		if err := json.Unmarshal(msg.Payload(), &meta); err != nil {
			log.Printf("console: session unmarshal error: %v", err)
			return
		}
		fmt.Printf("[SESSION] runs=%d %s -> %s\n", meta.Runs,
			meta.Started.Format("15:04:05"), meta.Ended.Format("15:04:05"))
		for _, cs := range meta.Channels {
			if cs.Stats.Empty() {
				continue
			}
			fmt.Printf("          %-11s avg=%7.3f min=%7.3f max=%7.3f n=%d\n",
				cs.Channel, cs.Stats.AvgMs, cs.Stats.MinMs, cs.Stats.MaxMs, cs.Stats.RunCount)
		}
	})
	sessionToken.Wait()
	if sessionToken.Error() != nil {
		return sessionToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSessions)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
