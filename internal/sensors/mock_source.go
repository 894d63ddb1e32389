// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// Mock vehicle parameters: field geometry in sensor counts. The level
// sweep traces a full circle in 30s, rocking swings ±12° roll with a
// 6s period. Chosen so a mock run recovers a plausible-looking record.
const (
	mockOffsetX, mockRadiusX = 120.0, 250.0
	mockOffsetY, mockRadiusY = -80.0, 220.0
	mockOffsetZ, mockScaleZ  = 60.0, 480.0

	mockSweepPeriod = 30 * time.Second
	mockRockPeriod  = 6 * time.Second
	mockRockAmpDeg  = 12.0

	mockHeadingDeg = 40.0  // heading held during the rocking phase
	mockFieldDown  = -0.35 // vertical field component, normalized units

	mockGravity = 4096.0 // accel counts at 1g
)

// MockSource simulates the vehicle's motion during a calibration run:
// a full horizontal circle until StartRollPhase is called, then rocking
// at constant heading. Lets the whole run be exercised off-vehicle.
type MockSource struct {
	start time.Time
	now   func() time.Time // test hook; time.Now when nil

	mu      sync.Mutex
	rocking bool
}

// NewMockSource creates a mock vehicle that starts in the level sweep.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now()}
}

// StartRollPhase switches the simulated motion from circling to
// rocking at a fixed heading.
func (m *MockSource) StartRollPhase() {
	m.mu.Lock()
	m.rocking = true
	m.mu.Unlock()
}

func (m *MockSource) motion() (headingRad, rollRad float64) {
	m.mu.Lock()
	rocking := m.rocking
	m.mu.Unlock()

	clock := m.now
	if clock == nil {
		clock = time.Now
	}
	elapsed := clock().Sub(m.start).Seconds()
	if !rocking {
		return 2 * math.Pi * elapsed / mockSweepPeriod.Seconds(), 0
	}
	roll := mockRockAmpDeg * math.Pi / 180.0 * math.Sin(2*math.Pi*elapsed/mockRockPeriod.Seconds())
	return mockHeadingDeg * math.Pi / 180.0, roll
}

// ReadMagField returns the simulated field in the rolled body frame.
func (m *MockSource) ReadMagField() (mag.Vec3, error) {
	heading, roll := m.motion()

	// Earth-frame field, normalized so the horizontal components have
	// amplitude 0.5 (peak-to-peak 1 after offset/scale correction).
	ex := 0.5 * math.Cos(heading)
	ey := 0.5 * math.Sin(heading)
	ez := mockFieldDown

	// Roll about the forward axis.
	sinR, cosR := math.Sin(roll), math.Cos(roll)
	bodyY := ey*cosR + ez*sinR
	bodyZ := -ey*sinR + ez*cosR

	return mag.Vec3{
		X: mockOffsetX + 2*mockRadiusX*ex,
		Y: mockOffsetY + 2*mockRadiusY*bodyY,
		Z: mockOffsetZ + mockScaleZ*bodyZ,
	}, nil
}

// ReadAcceleration returns gravity in the rolled body frame.
func (m *MockSource) ReadAcceleration() (mag.Vec3, error) {
	_, roll := m.motion()
	return mag.Vec3{
		X: 0,
		Y: mockGravity * math.Sin(roll),
		Z: mockGravity * math.Cos(roll),
	}, nil
}
