// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package samplelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/compass_calibration/internal/calib"
	"github.com/relabs-tech/compass_calibration/internal/mag"
)

func TestRunWritesMarkerAndPhaseLogs(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)

	run, err := NewRun(dir, start)
	if err != nil {
		t.Fatalf("NewRun error: %v", err)
	}

	marker, err := os.ReadFile(filepath.Join(dir, "last_run.txt"))
	if err != nil {
		t.Fatalf("reading run marker: %v", err)
	}
	if got, want := strings.TrimSpace(string(marker)), start.Format(time.RFC3339); got != want {
		t.Errorf("marker = %q, want %q", got, want)
	}

	logw, err := run.OpenPhase(calib.PhaseLevel)
	if err != nil {
		t.Fatalf("OpenPhase error: %v", err)
	}
	samples := []mag.Sample{
		{Mag: mag.Vec3{X: 1.5, Y: -2, Z: 0.25}, Acc: mag.Vec3{X: 0, Y: 100, Z: 4000}},
		{Mag: mag.Vec3{X: -370, Y: 142, Z: 60}, Acc: mag.Vec3{X: -7, Y: 0, Z: 4096}},
	}
	for _, s := range samples {
		if err := logw.Append(s); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}
	if err := logw.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	name := filepath.Join(dir, "2026-08-30T14-05-00Z_level_samples.csv")
	f, err := os.Open(name)
	if err != nil {
		t.Fatalf("opening phase log: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading phase log: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	wantHeader := []string{"mag_x", "mag_y", "mag_z", "acc_x", "acc_y", "acc_z"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][0] != "1.5" || rows[1][1] != "-2" || rows[1][5] != "4000" {
		t.Errorf("first data row = %v", rows[1])
	}
	if rows[2][0] != "-370" || rows[2][5] != "4096" {
		t.Errorf("second data row = %v", rows[2])
	}
}

func TestRunSeparatesPhases(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	run, err := NewRun(dir, start)
	if err != nil {
		t.Fatalf("NewRun error: %v", err)
	}

	for _, p := range []calib.Phase{calib.PhaseLevel, calib.PhaseRoll} {
		logw, err := run.OpenPhase(p)
		if err != nil {
			t.Fatalf("OpenPhase(%s) error: %v", p, err)
		}
		if err := logw.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
	}

	for _, name := range []string{
		"2026-08-30T09-00-00Z_level_samples.csv",
		"2026-08-30T09-00-00Z_roll_samples.csv",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestNewRunCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "compass")
	if _, err := NewRun(dir, time.Now()); err != nil {
		t.Fatalf("NewRun error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
}
