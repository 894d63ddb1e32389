// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/compass_calibration/internal/attitude"
	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// nearLevelMaxRollDeg bounds the "near level" subset used to establish
// the flat-reference Y value. Inherited heuristic; do not tune without
// re-validating on a real installation.
const nearLevelMaxRollDeg = 3.0

// Damped least-squares iteration limits. The cost surface has a single
// stationary point for positive scale, so the damping only moderates
// step length on the way in from the (1, 1) start.
const (
	lmMaxIterations  = 200
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e12
	lmGradTol        = 1e-12
	lmStepTol        = 1e-12
	lmCostTol        = 1e-12
)

// rollObs is one roll-phase sample prepared for the solver: horizontal
// components normalized with the level-phase results, vertical left
// raw, attitude precomputed in radians.
type rollObs struct {
	adjX, adjY float64
	rawZ       float64
	sinR, cosR float64
	sinP, cosP float64
}

// FitRoll derives offset and scale for the vertical axis from the
// roll-phase samples and the level-phase results.
//
// The tilt-compensated Y component, as a function of the unknowns
// p = (offsetZ, scaleZ), is
//
//	compY = adjX·sin(roll)·sin(pitch) + adjY·cos(roll) - ((rawZ-p0)/p1)·sin(roll)·cos(pitch)
//
// At true level the Y reading already reflects the heading-referenced
// field, so compY must equal the near-level mean of adjY for every
// rolled sample. The solver minimizes the sum of squared residuals
// starting from (1, 1).
func FitRoll(samples []mag.Sample, calX, calY AxisCalibration) (AxisCalibration, error) {
	if len(samples) == 0 {
		return AxisCalibration{}, fmt.Errorf("%w: no roll-phase samples", ErrInsufficientData)
	}
	if calX.Scale == 0 || calY.Scale == 0 {
		return AxisCalibration{}, fmt.Errorf("%w: level-phase scale is zero", ErrDegenerateCalibration)
	}

	obs := make([]rollObs, 0, len(samples))
	var flatSum float64
	var flatN int
	for _, s := range samples {
		adjX := (s.Mag.X - calX.Offset) / calX.Scale
		adjY := (s.Mag.Y - calY.Offset) / calY.Scale

		pitchDeg, rollDeg := attitude.PitchRoll(s.Acc)
		roll := rollDeg * math.Pi / 180.0
		pitch := pitchDeg * math.Pi / 180.0

		obs = append(obs, rollObs{
			adjX: adjX,
			adjY: adjY,
			rawZ: s.Mag.Z,
			sinR: math.Sin(roll),
			cosR: math.Cos(roll),
			sinP: math.Sin(pitch),
			cosP: math.Cos(pitch),
		})

		if math.Abs(rollDeg) < nearLevelMaxRollDeg {
			flatSum += adjY
			flatN++
		}
	}
	if flatN == 0 {
		return AxisCalibration{}, fmt.Errorf("%w: no near-level samples (|roll| < %.0f°) to reference", ErrInsufficientData, nearLevelMaxRollDeg)
	}
	yFlat := flatSum / float64(flatN)

	p0, p1, err := solveRollLeastSquares(obs, yFlat)
	if err != nil {
		return AxisCalibration{}, fmt.Errorf("%w: %v", ErrCalibrationDiverged, err)
	}

	cal := AxisCalibration{Offset: p0, Scale: p1}
	if cal.Scale == 0 {
		return AxisCalibration{}, fmt.Errorf("%w: solved Z scale is zero", ErrDegenerateCalibration)
	}
	return cal, nil
}

// solveRollLeastSquares minimizes the summed squared residual with a
// Levenberg-Marquardt iteration. The Jacobian is analytic and
// two-column; each step solves the damped 2x2 normal equations. A
// rejected step raises the damping tenfold and retries from the same
// point, an accepted step lowers it again.
func solveRollLeastSquares(obs []rollObs, yFlat float64) (float64, float64, error) {
	residual := func(o rollObs, p0, p1 float64) float64 {
		return o.adjX*o.sinR*o.sinP + o.adjY*o.cosR - ((o.rawZ-p0)/p1)*o.sinR*o.cosP - yFlat
	}
	cost := func(p0, p1 float64) float64 {
		var sum float64
		for _, o := range obs {
			r := residual(o, p0, p1)
			sum += r * r
		}
		return sum
	}

	p := [2]float64{1, 1}
	c := cost(p[0], p[1])
	damping := lmInitialDamping
	everImproved := false

	for iter := 0; iter < lmMaxIterations; iter++ {
		// Normal equations J'J and J'r at the current point.
		var jtj00, jtj01, jtj11, jtr0, jtr1 float64
		for _, o := range obs {
			r := residual(o, p[0], p[1])
			j0 := o.sinR * o.cosP / p[1]
			j1 := (o.rawZ - p[0]) * o.sinR * o.cosP / (p[1] * p[1])
			jtj00 += j0 * j0
			jtj01 += j0 * j1
			jtj11 += j1 * j1
			jtr0 += j0 * r
			jtr1 += j1 * r
		}
		if math.Hypot(jtr0, jtr1) <= lmGradTol {
			return p[0], p[1], nil
		}

		improved := false
		for damping <= lmMaxDamping {
			a := mat.NewDense(2, 2, []float64{
				jtj00 * (1 + damping), jtj01,
				jtj01, jtj11 * (1 + damping),
			})
			b := mat.NewVecDense(2, []float64{-jtr0, -jtr1})

			var step mat.VecDense
			if err := step.SolveVec(a, b); err != nil {
				damping *= 10
				continue
			}

			q := [2]float64{p[0] + step.AtVec(0), p[1] + step.AtVec(1)}
			if q[1] == 0 || !isFinite(q[0]) || !isFinite(q[1]) {
				damping *= 10
				continue
			}
			if damping <= lmInitialDamping && math.Hypot(step.AtVec(0), step.AtVec(1)) <= lmStepTol*(1+math.Hypot(p[0], p[1])) {
				return q[0], q[1], nil
			}

			cq := cost(q[0], q[1])
			if cq < c {
				// Relative cost decrease only counts as
				// convergence when the step was near pure
				// Gauss-Newton; a heavily damped step barely
				// moves regardless of distance to the minimum.
				done := damping <= lmInitialDamping && c-cq <= lmCostTol*(1+cq)
				p, c = q, cq
				if done {
					return p[0], p[1], nil
				}
				if damping > lmInitialDamping*1e-6 {
					damping /= 10
				}
				improved = true
				everImproved = true
				break
			}
			damping *= 10
		}
		if !improved {
			// No damped step lowers the cost. With a single
			// stationary point that means the iterate sits at
			// the minimum to machine precision, unless the
			// very first step already failed.
			if everImproved {
				return p[0], p[1], nil
			}
			return 0, 0, errors.New("damping limit reached without improvement")
		}
	}
	return 0, 0, errors.New("iteration limit reached")
}

func isFinite(x float64) bool {
	return !math.IsInf(x, 0) && !math.IsNaN(x)
}
