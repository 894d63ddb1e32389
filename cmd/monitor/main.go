// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/compass_calibration/internal/app"
	"github.com/relabs-tech/compass_calibration/internal/config"
)

func main() {
	configPath := flag.String("config", "compass_config.txt", "Path to configuration file")
	flag.Parse()

	log.Println("starting compass-calibration console monitor (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMonitor(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
