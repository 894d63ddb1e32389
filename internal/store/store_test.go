// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relabs-tech/compass_calibration/internal/calib"
)

func testRecord() calib.Record {
	return calib.Record{
		X: calib.AxisCalibration{Offset: 120, Scale: 500},
		Y: calib.AxisCalibration{Offset: -80, Scale: 440},
		Z: calib.AxisCalibration{Offset: 60.5, Scale: 480},
	}
}

func TestFileStorePut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.txt")
	s := &FileStore{Path: path}

	if err := s.Put(testRecord()); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading store: %v", err)
	}
	want := []string{
		"XOFFSET=120",
		"YOFFSET=-80",
		"ZOFFSET=60.5",
		"XSCALE=500",
		"YSCALE=440",
		"ZSCALE=480",
	}
	got := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFileStoreOverwrites(t *testing.T) {
	// A re-run replaces the previous record wholesale; no leftovers
	// from the old file and no temp files left behind.
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.txt")
	s := &FileStore{Path: path}

	if err := s.Put(testRecord()); err != nil {
		t.Fatalf("first Put error: %v", err)
	}
	rec := testRecord()
	rec.Z.Offset = 61
	if err := s.Put(rec); err != nil {
		t.Fatalf("second Put error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading store: %v", err)
	}
	if !strings.Contains(string(b), "ZOFFSET=61\n") {
		t.Errorf("store not updated: %q", b)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPairsOrder(t *testing.T) {
	pairs := Pairs(testRecord())
	wantKeys := []string{"XOFFSET", "YOFFSET", "ZOFFSET", "XSCALE", "YSCALE", "ZSCALE"}
	if len(pairs) != len(wantKeys) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(wantKeys))
	}
	for i, kv := range pairs {
		if kv.Key != wantKeys[i] {
			t.Errorf("pair %d key = %q, want %q", i, kv.Key, wantKeys[i])
		}
	}
	if pairs[2].Value != 60.5 {
		t.Errorf("ZOFFSET value = %v, want 60.5", pairs[2].Value)
	}
}
