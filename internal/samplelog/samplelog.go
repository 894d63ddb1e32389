// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package samplelog writes the durable per-phase sample logs kept for
// offline inspection of a calibration run. One CSV file per phase, both
// named from the single run-start timestamp, plus a marker file
// recording that timestamp for later correlation.
package samplelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/relabs-tech/compass_calibration/internal/calib"
	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// fileTimeFormat keeps filenames colon-free so they survive every
// filesystem we deploy on.
const fileTimeFormat = "2006-01-02T15-04-05Z07-00"

const markerName = "last_run.txt"

var header = []string{"mag_x", "mag_y", "mag_z", "acc_x", "acc_y", "acc_z"}

// Run owns the log files of one calibration run.
type Run struct {
	dir   string
	stamp string
}

// NewRun prepares the log directory and writes the run marker. Both
// phase logs of the run share the start timestamp in their names.
func NewRun(dir string, start time.Time) (*Run, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sample log dir: %w", err)
	}
	r := &Run{dir: dir, stamp: start.Format(fileTimeFormat)}

	marker := start.Format(time.RFC3339) + "\n"
	if err := os.WriteFile(filepath.Join(dir, markerName), []byte(marker), 0o644); err != nil {
		return nil, fmt.Errorf("writing run marker: %w", err)
	}
	return r, nil
}

// OpenPhase creates the CSV log for one phase and writes its header.
func (r *Run) OpenPhase(p calib.Phase) (calib.SampleLog, error) {
	name := fmt.Sprintf("%s_%s_samples.csv", r.stamp, p)
	f, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return &phaseLog{f: f, w: w}, nil
}

type phaseLog struct {
	f *os.File
	w *csv.Writer
}

func (l *phaseLog) Append(s mag.Sample) error {
	return l.w.Write([]string{
		formatField(s.Mag.X),
		formatField(s.Mag.Y),
		formatField(s.Mag.Z),
		formatField(s.Acc.X),
		formatField(s.Acc.Y),
		formatField(s.Acc.Z),
	})
}

func (l *phaseLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

func formatField(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
