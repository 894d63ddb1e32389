// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import "errors"

// The four ways a calibration run fails. None of them is retried
// automatically; all terminate the run with a diagnostic and the
// operator redoes the affected phase. Callers classify with errors.Is.
var (
	// ErrSourceUnavailable wraps a sensor read failure. Sensor I/O
	// failures are fatal for the current run.
	ErrSourceUnavailable = errors.New("sample source unavailable")

	// ErrInsufficientData means a phase produced zero usable samples,
	// or the roll phase had no near-level samples to reference.
	ErrInsufficientData = errors.New("insufficient calibration data")

	// ErrDegenerateCalibration means a computed scale came out zero,
	// i.e. the vehicle did not actually move during collection. A zero
	// scale must never be produced: it would silently corrupt every
	// downstream normalization.
	ErrDegenerateCalibration = errors.New("degenerate calibration: zero scale")

	// ErrCalibrationDiverged means the nonlinear solver did not
	// converge on the vertical-axis parameters.
	ErrCalibrationDiverged = errors.New("calibration solver did not converge")
)
