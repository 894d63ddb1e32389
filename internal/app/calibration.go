// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/compass_calibration/internal/attitude"
	"github.com/relabs-tech/compass_calibration/internal/calib"
	"github.com/relabs-tech/compass_calibration/internal/config"
	"github.com/relabs-tech/compass_calibration/internal/mag"
	"github.com/relabs-tech/compass_calibration/internal/samplelog"
	"github.com/relabs-tech/compass_calibration/internal/sensors"
	"github.com/relabs-tech/compass_calibration/internal/store"
)

// RunCalibration executes one interactive two-phase calibration run:
// level sweep, roll sweep, then publication of the six-parameter record
// to the configuration store. One run per invocation.
func RunCalibration(useMock bool) error {
	cfg := config.Get()

	fmt.Println("=== Compass Calibration (level + roll) ===")
	fmt.Println("Two phases: a full horizontal circle, then rocking at constant heading.")
	fmt.Println("Each phase starts on ENTER; ENTER again stops it early with partial data.")
	fmt.Println()

	var source mag.SampleSource
	var mock *sensors.MockSource
	if useMock {
		log.Println("using mock vehicle source")
		mock = sensors.NewMockSource()
		source = mock
	} else {
		src, err := sensors.NewMPU9250Source()
		if err != nil {
			return fmt.Errorf("sample source: %w", err)
		}
		source = src
	}

	logs, err := samplelog.NewRun(cfg.LogDir, time.Now())
	if err != nil {
		return err
	}

	// The telemetry feed is observational only; a missing broker must
	// not block a calibration run.
	feed, err := newTelemetryFeed(cfg)
	if err != nil {
		log.Printf("WARNING: telemetry feed unavailable, continuing without it: %v", err)
		feed = nil
	} else {
		defer feed.close()
	}

	console := newConsole(bufio.NewReader(os.Stdin))

	orch := &calib.Orchestrator{
		Source:       source,
		Gate:         &consoleGate{console: console, mock: mock},
		Observer:     &consoleObserver{feed: feed},
		Logs:         logs,
		Store:        &store.FileStore{Path: cfg.StorePath},
		SampleCount:  cfg.SampleCount,
		Interval:     time.Duration(cfg.SampleInterval) * time.Millisecond,
		PhaseContext: console.phaseContext,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := orch.Run(ctx)
	fmt.Println()
	if err != nil {
		explainFailure(err)
		return err
	}

	fmt.Println("Calibration complete.")
	for _, kv := range store.Pairs(rec) {
		fmt.Printf("%s=%g\n", kv.Key, kv.Value)
	}
	fmt.Printf("Saved to %s\n", cfg.StorePath)

	if feed != nil {
		feed.publishResult(rec)
	}
	return nil
}

// explainFailure prints operator-actionable advice for the known
// failure kinds. The error itself still propagates to main.
func explainFailure(err error) {
	switch {
	case errors.Is(err, calib.ErrSourceUnavailable):
		fmt.Fprintln(os.Stderr, "Sensor read failed. Check wiring and power, then rerun the calibration.")
	case errors.Is(err, calib.ErrInsufficientData):
		fmt.Fprintln(os.Stderr, "Not enough usable samples. Redo the phase and let it run longer.")
	case errors.Is(err, calib.ErrDegenerateCalibration):
		fmt.Fprintln(os.Stderr, "No field variation observed. Make sure the vehicle actually moved, then redo the phase.")
	case errors.Is(err, calib.ErrCalibrationDiverged):
		fmt.Fprintln(os.Stderr, "The roll fit did not converge. Redo the roll phase with steadier rocking.")
	}
}

// console serializes stdin through one reader goroutine so the phase
// gates and the per-phase ENTER interrupts never compete for lines.
type console struct {
	lines chan string
}

func newConsole(in *bufio.Reader) *console {
	c := &console{lines: make(chan string)}
	go func() {
		defer close(c.lines)
		for {
			line, err := in.ReadString('\n')
			if err != nil {
				return
			}
			c.lines <- line
		}
	}()
	return c
}

func (c *console) waitEnter(prompt string) {
	fmt.Print(prompt)
	if _, ok := <-c.lines; !ok {
		// stdin closed; proceed rather than hang a scripted run
		fmt.Println()
	}
}

// phaseContext arms the per-phase operator interrupt: ENTER during a
// collection phase cancels that phase's context. The collector then
// returns whatever it gathered so far.
func (c *console) phaseContext(ctx context.Context, p calib.Phase) (context.Context, context.CancelFunc) {
	phaseCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case _, ok := <-c.lines:
			if ok {
				cancel()
			}
		case <-phaseCtx.Done():
		}
	}()
	return phaseCtx, cancel
}

type consoleGate struct {
	console *console
	mock    *sensors.MockSource // nil on a real vehicle
}

func (g *consoleGate) Confirm(p calib.Phase) error {
	switch p {
	case calib.PhaseLevel:
		fmt.Println("Phase 1/2 — level sweep")
		fmt.Println("Drive the vehicle through one slow, full circle on level ground.")
		g.console.waitEnter("Press ENTER to start the level sweep...")
	case calib.PhaseRoll:
		fmt.Println()
		fmt.Println("Phase 2/2 — roll sweep")
		fmt.Println("Hold a constant heading and rock the vehicle side to side.")
		g.console.waitEnter("Press ENTER to start the roll sweep...")
		if g.mock != nil {
			g.mock.StartRollPhase()
		}
	}
	fmt.Println()
	return nil
}

// consoleObserver renders the textual progress counter and forwards
// each sample to the telemetry feed.
type consoleObserver struct {
	feed *telemetryFeed
}

func (o *consoleObserver) Sample(phase calib.Phase, index, total int, s mag.Sample) {
	pitch, roll := attitude.PitchRoll(s.Acc)
	fmt.Printf("\r%s: sample %3d/%d  pitch=%6.2f  roll=%6.2f", phase, index+1, total, pitch, roll)
	if o.feed != nil {
		o.feed.publishSample(phase, index, total, s, pitch, roll)
	}
}
