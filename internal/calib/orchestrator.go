// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// State is the orchestrator's lifecycle position. Transitions are
// strictly sequential and forward-only; a failure in a compute state
// terminates the run rather than looping back.
type State int

const (
	StateInit State = iota
	StateLevelCollect
	StateLevelCompute
	StateRollCollect
	StateRollCompute
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLevelCollect:
		return "LEVEL_COLLECT"
	case StateLevelCompute:
		return "LEVEL_COMPUTE"
	case StateRollCollect:
		return "ROLL_COLLECT"
	case StateRollCompute:
		return "ROLL_COMPUTE"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Orchestrator sequences the two calibration phases, wires the
// collector to the calibrators, and publishes the final record.
type Orchestrator struct {
	Source mag.SampleSource

	Gate     Gate     // optional; blocks each COLLECT on operator start
	Observer Observer // optional; per-sample feedback
	Logs     LogSink  // optional; durable per-phase sample logs
	Store    Store    // optional; record publication on DONE

	SampleCount int           // samples per phase; DefaultSampleCount if <= 0
	Interval    time.Duration // tick spacing; DefaultInterval if <= 0

	// PhaseContext, when set, derives the context governing one
	// collection phase from the run context. The console surface uses
	// it to arm a per-phase operator interrupt; cancelling the phase
	// context ends collection early without aborting the run.
	PhaseContext func(ctx context.Context, p Phase) (context.Context, context.CancelFunc)

	state State
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// Run executes the full calibration: LEVEL_COLLECT, LEVEL_COMPUTE,
// ROLL_COLLECT, ROLL_COMPUTE, DONE. A fresh orchestrator runs exactly
// once; there is no retry-in-place.
func (o *Orchestrator) Run(ctx context.Context) (Record, error) {
	if o.state != StateInit {
		return Record{}, errors.New("calibration orchestrator already ran")
	}

	n := o.SampleCount
	if n <= 0 {
		n = DefaultSampleCount
	}

	// Phase 1: full-circle sweep, horizontal axes.
	o.state = StateLevelCollect
	levelSamples, err := o.collectPhase(ctx, PhaseLevel, n)
	if err != nil {
		return Record{}, err
	}

	o.state = StateLevelCompute
	calX, calY, err := FitLevel(levelSamples)
	if err != nil {
		return Record{}, fmt.Errorf("level phase: %w", err)
	}

	// Phase 2: rocking at constant heading, vertical axis.
	o.state = StateRollCollect
	rollSamples, err := o.collectPhase(ctx, PhaseRoll, n)
	if err != nil {
		return Record{}, err
	}

	o.state = StateRollCompute
	calZ, err := FitRoll(rollSamples, calX, calY)
	if err != nil {
		return Record{}, fmt.Errorf("roll phase: %w", err)
	}

	o.state = StateDone
	rec := Record{X: calX, Y: calY, Z: calZ}
	if o.Store != nil {
		if err := o.Store.Put(rec); err != nil {
			return rec, fmt.Errorf("publishing calibration record: %w", err)
		}
	}
	return rec, nil
}

func (o *Orchestrator) collectPhase(ctx context.Context, p Phase, n int) ([]mag.Sample, error) {
	if o.Gate != nil {
		if err := o.Gate.Confirm(p); err != nil {
			return nil, fmt.Errorf("%s phase gate: %w", p, err)
		}
	}

	collector := &Collector{
		Source:   o.Source,
		Interval: o.Interval,
		Observer: o.Observer,
	}
	if o.Logs != nil {
		logw, err := o.Logs.OpenPhase(p)
		if err != nil {
			return nil, fmt.Errorf("opening %s sample log: %w", p, err)
		}
		defer logw.Close()
		collector.Log = logw
	}

	phaseCtx := ctx
	if o.PhaseContext != nil {
		var cancel context.CancelFunc
		phaseCtx, cancel = o.PhaseContext(ctx, p)
		defer cancel()
	}

	samples, err := collector.Collect(phaseCtx, p, n)
	if err != nil {
		return nil, fmt.Errorf("%s phase: %w", p, err)
	}
	return samples, nil
}
