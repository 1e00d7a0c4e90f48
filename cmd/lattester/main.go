// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/latency_tester/internal/app"
	"github.com/relabs-tech/latency_tester/internal/config"
)

func main() {
	configPath := flag.String("config", "./lattester_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting latency tester (sensor + button -> OLED/MQTT/web)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunTester(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
