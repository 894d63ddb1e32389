// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"errors"
	"math"
	"testing"

	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// rockingSamples simulates the roll phase: the vehicle holds a fixed
// heading while rolling through the given angles (degrees, roll about
// the longitudinal axis, zero pitch). The raw Z readings are produced
// from the true offset/scale the fit is expected to recover; X and Y
// are produced consistently with the supplied level calibrations.
func rockingSamples(rollsDeg []float64, calX, calY AxisCalibration, trueZ AxisCalibration) []mag.Sample {
	// Earth-frame field components at the held heading, in the
	// normalized units the level calibration maps raw readings to.
	const ex, ey, ez = 0.38, 0.32, -0.35

	samples := make([]mag.Sample, 0, len(rollsDeg))
	for _, deg := range rollsDeg {
		phi := deg * math.Pi / 180.0
		sin, cos := math.Sin(phi), math.Cos(phi)

		// Rolling about X leaves the X component alone and rotates the
		// earth-frame Y/Z pair into the body frame.
		bodyY := ey*cos + ez*sin
		bodyZ := -ey*sin + ez*cos

		samples = append(samples, mag.Sample{
			Mag: mag.Vec3{
				X: calX.Offset + calX.Scale*ex,
				Y: calY.Offset + calY.Scale*bodyY,
				Z: trueZ.Offset + trueZ.Scale*bodyZ,
			},
			// Gravity seen by a body rolled by phi.
			Acc: mag.Vec3{X: 0, Y: math.Sin(phi), Z: math.Cos(phi)},
		})
	}
	return samples
}

// rockSteps is one rocking period in thirds of the peak angle. The
// only near-level entries are exact zeros, so the flat reference comes
// out noise-free.
var rockSteps = []float64{0, 1, 2, 3, 2, 1, 0, -1, -2, -3, -2, -1}

func rockingAngles(n int, maxDeg float64) []float64 {
	angles := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		angles = append(angles, maxDeg*rockSteps[i%len(rockSteps)]/3)
	}
	return angles
}

func TestFitRollRecoversZAxis(t *testing.T) {
	calX := AxisCalibration{Offset: 120, Scale: 500}
	calY := AxisCalibration{Offset: -80, Scale: 440}
	trueZ := AxisCalibration{Offset: 5, Scale: 10}

	samples := rockingSamples(rockingAngles(40, 12), calX, calY, trueZ)

	calZ, err := FitRoll(samples, calX, calY)
	if err != nil {
		t.Fatalf("FitRoll error: %v", err)
	}
	if math.Abs(calZ.Offset-trueZ.Offset) > 1e-2 {
		t.Errorf("Z offset = %v, want %v", calZ.Offset, trueZ.Offset)
	}
	if math.Abs(calZ.Scale-trueZ.Scale) > 1e-2 {
		t.Errorf("Z scale = %v, want %v", calZ.Scale, trueZ.Scale)
	}
}

func TestFitRollLargeParameters(t *testing.T) {
	// Realistic sensor counts: offset and scale far from the (1, 1)
	// starting point.
	calX := AxisCalibration{Offset: 0, Scale: 2}
	calY := AxisCalibration{Offset: 0, Scale: 4}
	trueZ := AxisCalibration{Offset: 60, Scale: 480}

	samples := rockingSamples(rockingAngles(60, 15), calX, calY, trueZ)

	calZ, err := FitRoll(samples, calX, calY)
	if err != nil {
		t.Fatalf("FitRoll error: %v", err)
	}
	if math.Abs(calZ.Offset-trueZ.Offset) > 0.5 {
		t.Errorf("Z offset = %v, want %v", calZ.Offset, trueZ.Offset)
	}
	if math.Abs(calZ.Scale-trueZ.Scale) > 0.5 {
		t.Errorf("Z scale = %v, want %v", calZ.Scale, trueZ.Scale)
	}
}

func TestFitRollSinusoidalRocking(t *testing.T) {
	calX := AxisCalibration{Offset: 120, Scale: 500}
	calY := AxisCalibration{Offset: -80, Scale: 440}
	trueZ := AxisCalibration{Offset: 5, Scale: 10}

	// A smooth rock sampled on a fixed cadence leaves small nonzero
	// angles inside the near-level band, so the flat reference picks
	// up a slight bias. The fit must still converge and land close to
	// the truth.
	rolls := make([]float64, 50)
	for i := range rolls {
		rolls[i] = 12 * math.Sin(2*math.Pi*float64(i)/25)
	}
	samples := rockingSamples(rolls, calX, calY, trueZ)

	calZ, err := FitRoll(samples, calX, calY)
	if err != nil {
		t.Fatalf("FitRoll error: %v", err)
	}
	if math.Abs(calZ.Offset-trueZ.Offset) > 0.5 {
		t.Errorf("Z offset = %v, want %v", calZ.Offset, trueZ.Offset)
	}
	if math.Abs(calZ.Scale-trueZ.Scale) > 0.5 {
		t.Errorf("Z scale = %v, want %v", calZ.Scale, trueZ.Scale)
	}
}

// pitchRolledSample builds one sample whose tilt-compensated Y equals
// yFlat exactly at the true Z calibration, for an arbitrary attitude.
func pitchRolledSample(rollDeg, pitchDeg, adjX, adjY, yFlat float64, calX, calY, trueZ AxisCalibration) mag.Sample {
	phi := rollDeg * math.Pi / 180
	theta := pitchDeg * math.Pi / 180
	sinR, cosR := math.Sin(phi), math.Cos(phi)
	sinP, cosP := math.Sin(theta), math.Cos(theta)

	adjZ := (adjX*sinR*sinP + adjY*cosR - yFlat) / (sinR * cosP)
	return mag.Sample{
		Mag: mag.Vec3{
			X: calX.Offset + calX.Scale*adjX,
			Y: calY.Offset + calY.Scale*adjY,
			Z: trueZ.Offset + trueZ.Scale*adjZ,
		},
		Acc: mag.Vec3{X: -sinP, Y: cosP * sinR, Z: cosP * cosR},
	}
}

func TestFitRollWithPitch(t *testing.T) {
	calX := AxisCalibration{Offset: 120, Scale: 500}
	calY := AxisCalibration{Offset: -80, Scale: 440}
	trueZ := AxisCalibration{Offset: 5, Scale: 10}

	// Nonzero pitch throughout, so both pitch terms of the
	// compensation formula carry weight. The near-level subset (the
	// first three attitudes) sits at small nonzero roll and its Y
	// readings average to the flat reference exactly.
	const yFlat = 0.32
	attitudes := []struct{ roll, pitch, adjY float64 }{
		{1, 0.5, 0.33},
		{2, -0.5, 0.31},
		{-1, 0.5, 0.32},
		{10, 2, 0.30},
		{-10, 2, 0.34},
		{12, -2, 0.29},
		{-12, -2, 0.35},
		{8, 1, 0.31},
		{-8, -1, 0.33},
	}
	samples := make([]mag.Sample, 0, len(attitudes))
	for _, a := range attitudes {
		samples = append(samples, pitchRolledSample(a.roll, a.pitch, 0.38, a.adjY, yFlat, calX, calY, trueZ))
	}

	calZ, err := FitRoll(samples, calX, calY)
	if err != nil {
		t.Fatalf("FitRoll error: %v", err)
	}
	if math.Abs(calZ.Offset-trueZ.Offset) > 1e-4 {
		t.Errorf("Z offset = %v, want %v", calZ.Offset, trueZ.Offset)
	}
	if math.Abs(calZ.Scale-trueZ.Scale) > 1e-4 {
		t.Errorf("Z scale = %v, want %v", calZ.Scale, trueZ.Scale)
	}
}

func TestFitRollNoSamples(t *testing.T) {
	_, err := FitRoll(nil, AxisCalibration{Scale: 2}, AxisCalibration{Scale: 4})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestFitRollNoNearLevelSamples(t *testing.T) {
	calX := AxisCalibration{Offset: 0, Scale: 2}
	calY := AxisCalibration{Offset: 0, Scale: 4}

	// Every sample rolled well past the near-level band: no flat
	// reference can be established.
	samples := rockingSamples([]float64{8, 10, 12, -8, -10, -12}, calX, calY, AxisCalibration{Offset: 5, Scale: 10})

	_, err := FitRoll(samples, calX, calY)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestFitRollRejectsZeroLevelScale(t *testing.T) {
	samples := rockingSamples(rockingAngles(20, 12), AxisCalibration{Scale: 1}, AxisCalibration{Scale: 1}, AxisCalibration{Offset: 5, Scale: 10})

	_, err := FitRoll(samples, AxisCalibration{Scale: 0}, AxisCalibration{Scale: 4})
	if !errors.Is(err, ErrDegenerateCalibration) {
		t.Fatalf("err = %v, want ErrDegenerateCalibration", err)
	}
}
