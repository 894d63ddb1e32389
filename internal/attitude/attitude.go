// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package attitude

import (
	"math"

	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// PitchRoll computes pitch and roll in degrees from an acceleration
// vector (gravity direction). Units cancel, only the ratios matter.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// Roll is positive with the starboard side down. The roll-compensation
// model in internal/calib depends on this convention; do not change it.
func PitchRoll(acc mag.Vec3) (pitchDeg, rollDeg float64) {
	rollRad := math.Atan2(acc.Y, acc.Z)
	pitchRad := math.Atan2(-acc.X, math.Sqrt(acc.Y*acc.Y+acc.Z*acc.Z))

	return pitchRad * 180.0 / math.Pi, rollRad * 180.0 / math.Pi
}
