// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/latency_tester/internal/app"
)

func main() {
	log.Println("starting latency tester simulator (virtual monitor, keyboard input)")
	log.Println("keys: c=click  s=select hold  d=debug hold  r=reset hold  (then Enter)")

	if err := app.RunSim(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
