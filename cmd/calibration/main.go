// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided two-phase compass calibration for vehicles subject to roll.
// Phase 1 (level): drive a slow full circle on level ground to fit
// X/Y hard-iron offset and scale by the min/max method.
// Phase 2 (roll): hold a steady heading while the vehicle rocks side
// to side; a least-squares fit of the tilt-compensation model yields
// the Z axis offset and scale.
//
// Output:
//
//	Per-phase CSV sample logs under LOG_DIR and the six calibration
//	scalars as KEY=VALUE lines at STORE_PATH.
//
// Run:
//
//	go run ./cmd/calibration [-config compass_config.txt] [-mock]
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/compass_calibration/internal/app"
	"github.com/relabs-tech/compass_calibration/internal/config"
)

func main() {
	configPath := flag.String("config", "compass_config.txt", "Path to configuration file")
	useMock := flag.Bool("mock", false, "Use a simulated vehicle instead of the MPU-9250")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCalibration(*useMock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
