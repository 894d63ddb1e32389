// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// Collection defaults. The calibration math assumes roughly uniform
// temporal sampling density across the rotation/rocking motion, hence a
// fixed-rate polling loop rather than an event-driven read.
const (
	DefaultSampleCount = 300
	DefaultInterval    = 100 * time.Millisecond
)

// Collector drives a SampleSource at a fixed cadence for a bounded
// number of samples per phase.
type Collector struct {
	Source   mag.SampleSource
	Interval time.Duration

	Log      SampleLog // optional; per-phase durable log
	Observer Observer  // optional; per-sample operator feedback
}

// Collect reads up to n samples from the source, one per tick.
//
// Cancelling ctx stops collection at the next tick boundary and returns
// the samples gathered so far (possibly none); an operator interrupt is
// best-effort short-circuit, not an error. A source read failure is
// fatal and reported as ErrSourceUnavailable.
func (c *Collector) Collect(ctx context.Context, phase Phase, n int) ([]mag.Sample, error) {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	samples := make([]mag.Sample, 0, n)
	for i := 0; i < n; i++ {
		// Interrupts are honored at tick boundaries only, never mid-read.
		if ctx.Err() != nil {
			return samples, nil
		}

		field, err := c.Source.ReadMagField()
		if err != nil {
			return nil, fmt.Errorf("%w: reading mag field: %v", ErrSourceUnavailable, err)
		}
		acc, err := c.Source.ReadAcceleration()
		if err != nil {
			return nil, fmt.Errorf("%w: reading acceleration: %v", ErrSourceUnavailable, err)
		}

		s := mag.Sample{Mag: field, Acc: acc}
		samples = append(samples, s)

		if c.Log != nil {
			if err := c.Log.Append(s); err != nil {
				return nil, fmt.Errorf("appending to %s sample log: %w", phase, err)
			}
		}
		if c.Observer != nil {
			c.Observer.Sample(phase, i, n, s)
		}

		if i == n-1 {
			break
		}
		select {
		case <-ctx.Done():
			return samples, nil
		case <-ticker.C:
		}
	}
	return samples, nil
}
