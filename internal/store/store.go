// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store publishes a finished calibration record to the shared
// configuration store consumed by the heading computer.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/relabs-tech/compass_calibration/internal/calib"
)

// FileStore writes the six calibration scalars as KEY=VALUE lines, the
// same format internal/config reads. The write goes through a temp file
// and a rename so readers never observe a partial record.
type FileStore struct {
	Path string
}

// Put writes rec under the well-known keys XOFFSET, YOFFSET, ZOFFSET,
// XSCALE, YSCALE, ZSCALE.
func (s *FileStore) Put(rec calib.Record) error {
	var b strings.Builder
	for _, kv := range Pairs(rec) {
		fmt.Fprintf(&b, "%s=%s\n", kv.Key, formatScalar(kv.Value))
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".calibration-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing calibration store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing calibration store: %w", err)
	}
	return nil
}

// KV is one named calibration scalar.
type KV struct {
	Key   string
	Value float64
}

// Pairs flattens a record into its six well-known keys, in the order
// they are written.
func Pairs(rec calib.Record) []KV {
	return []KV{
		{"XOFFSET", rec.X.Offset},
		{"YOFFSET", rec.Y.Offset},
		{"ZOFFSET", rec.Z.Offset},
		{"XSCALE", rec.X.Scale},
		{"YSCALE", rec.Y.Scale},
		{"ZSCALE", rec.Z.Scale},
	}
}

func formatScalar(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
