// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calib implements the two-phase compass calibration for a
// three-axis magnetometer mounted on a vehicle subject to roll.
//
// Phase 1 (level): the vehicle is driven through a full horizontal
// circle; the min/max ellipse fit recovers hard-iron offset and
// peak-to-peak soft-iron scale for the two horizontal axes.
//
// Phase 2 (roll): the vehicle is rocked at constant heading; a
// nonlinear least-squares fit against the tilt-compensation model
// recovers the vertical axis's offset and scale.
package calib

import (
	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// AxisCalibration corrects one magnetometer axis:
// corrected = (raw - Offset) / Scale. Scale is the peak-to-peak field
// range along the axis, a normalization divisor, never zero.
type AxisCalibration struct {
	Offset float64 `json:"offset"`
	Scale  float64 `json:"scale"`
}

// Record is the six-parameter calibration the run produces. Immutable
// once computed; handed to the configuration store for publication.
type Record struct {
	X AxisCalibration `json:"x"`
	Y AxisCalibration `json:"y"`
	Z AxisCalibration `json:"z"`
}

// Phase identifies which of the two collection phases a sample or log
// belongs to.
type Phase int

const (
	PhaseLevel Phase = iota // full-circle horizontal sweep
	PhaseRoll               // rocking at constant heading
)

func (p Phase) String() string {
	switch p {
	case PhaseLevel:
		return "level"
	case PhaseRoll:
		return "roll"
	default:
		return "unknown"
	}
}

// Observer receives each sample as it is collected, for real-time
// operator feedback. Purely observational: it cannot influence the
// calibration outcome.
type Observer interface {
	Sample(phase Phase, index, total int, s mag.Sample)
}

// SampleLog persists samples as they are collected, one durable log per
// phase, for offline inspection. A side channel: its contents never
// feed back into the calibration.
type SampleLog interface {
	Append(s mag.Sample) error
	Close() error
}

// LogSink opens the durable sample log for a phase.
type LogSink interface {
	OpenPhase(p Phase) (SampleLog, error)
}

// Store publishes a finished calibration record. The write is atomic;
// readers never observe a partial record.
type Store interface {
	Put(rec Record) error
}

// Gate blocks until the operator explicitly starts a phase.
type Gate interface {
	Confirm(p Phase) error
}
