// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"fmt"
	"math"

	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// FitLevel computes offset and scale for the two horizontal axes from
// the level-phase sweep using the min/max ellipse approximation:
// offset = (max+min)/2, scale = max-min (peak-to-peak). Assumes the
// vehicle was rotated through a full horizontal circle so the field
// projection traces (approximately) a full ellipse on each axis.
func FitLevel(samples []mag.Sample) (calX, calY AxisCalibration, err error) {
	if len(samples) == 0 {
		return AxisCalibration{}, AxisCalibration{}, fmt.Errorf("%w: no level-phase samples", ErrInsufficientData)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range samples {
		minX = math.Min(minX, s.Mag.X)
		maxX = math.Max(maxX, s.Mag.X)
		minY = math.Min(minY, s.Mag.Y)
		maxY = math.Max(maxY, s.Mag.Y)
	}

	calX = AxisCalibration{Offset: (maxX + minX) / 2, Scale: maxX - minX}
	calY = AxisCalibration{Offset: (maxY + minY) / 2, Scale: maxY - minY}

	// A zero range means the field never varied on that axis: the
	// vehicle was not rotated. Must be rejected here, not downstream.
	if calX.Scale == 0 {
		return AxisCalibration{}, AxisCalibration{}, fmt.Errorf("%w: no variation on X axis", ErrDegenerateCalibration)
	}
	if calY.Scale == 0 {
		return AxisCalibration{}, AxisCalibration{}, fmt.Errorf("%w: no variation on Y axis", ErrDegenerateCalibration)
	}
	return calX, calY, nil
}
