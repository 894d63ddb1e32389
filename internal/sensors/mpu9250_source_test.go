// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"strings"
	"testing"
)

// fakeIMU emulates the MPU-9250 register file and the AK8963 behind
// its I2C master: enabling slave 0 executes the queued transfer
// immediately, a read landing in the EXT_SENS_DATA window.
type fakeIMU struct {
	regs   map[byte]byte
	ak     map[byte]byte
	ext    [24]byte
	writes []regWrite

	failRead error
}

type regWrite struct {
	reg, val byte
}

func newFakeIMU() *fakeIMU {
	return &fakeIMU{
		regs: map[byte]byte{regWhoAmI: 0x71},
		ak: map[byte]byte{
			akWIA: akDeviceID,
			// ASA fuse ROM: adjustment 1.1640625, 1.203125, 1.0.
			akASAX:     170,
			akASAX + 1: 180,
			akASAX + 2: 128,
		},
	}
}

func (f *fakeIMU) writeReg(reg, val byte) error {
	f.regs[reg] = val
	f.writes = append(f.writes, regWrite{reg, val})
	if reg == regI2CSlv0Ctrl && val&bitSlv0En != 0 {
		f.runSlave0(int(val &^ bitSlv0En))
	}
	return nil
}

func (f *fakeIMU) runSlave0(n int) {
	addr := f.regs[regI2CSlv0Addr]
	target := f.regs[regI2CSlv0Reg]
	if addr&bitI2CRead == 0 {
		f.ak[target] = f.regs[regI2CSlv0DO]
		return
	}
	for i := 0; i < n; i++ {
		f.ext[i] = f.ak[target+byte(i)]
	}
}

func (f *fakeIMU) readRegs(reg byte, n int) ([]byte, error) {
	if f.failRead != nil {
		return nil, f.failRead
	}
	out := make([]byte, n)
	if reg == regExtSensData00 {
		copy(out, f.ext[:n])
		return out, nil
	}
	for i := 0; i < n; i++ {
		out[i] = f.regs[reg+byte(i)]
	}
	return out, nil
}

func (f *fakeIMU) setMagFrame(x, y, z int16, st2 byte) {
	f.ak[akST1] = akDataReady
	f.ak[akHXL] = byte(x)
	f.ak[akHXL+1] = byte(uint16(x) >> 8)
	f.ak[akHXL+2] = byte(y)
	f.ak[akHXL+3] = byte(uint16(y) >> 8)
	f.ak[akHXL+4] = byte(z)
	f.ak[akHXL+5] = byte(uint16(z) >> 8)
	f.ak[akST2] = st2
}

func (f *fakeIMU) wrote(reg byte) (byte, bool) {
	for i := len(f.writes) - 1; i >= 0; i-- {
		if f.writes[i].reg == reg {
			return f.writes[i].val, true
		}
	}
	return 0, false
}

func TestMPUSourceInitConfiguresDevice(t *testing.T) {
	f := newFakeIMU()
	s := newMPUSource(f, 0, 0)

	if err := s.init(3, 1, 0x06); err != nil {
		t.Fatalf("init: %v", err)
	}

	if len(f.writes) == 0 || f.writes[0] != (regWrite{regPwrMgmt1, bitHReset}) {
		t.Errorf("first write = %+v, want device reset", f.writes[:1])
	}
	if v, ok := f.wrote(regAccelConfig); !ok || v != 3<<3 {
		t.Errorf("ACCEL_CONFIG = 0x%02X, want 0x%02X", v, 3<<3)
	}
	if v, ok := f.wrote(regUserCtrl); !ok || v&bitI2CMstEn == 0 {
		t.Errorf("USER_CTRL = 0x%02X, want I2C master enabled", v)
	}
	if got := f.ak[akCNTL1]; got != 1<<4|0x06 {
		t.Errorf("AK8963 CNTL1 = 0x%02X, want 0x%02X", got, 1<<4|0x06)
	}
	// Slave 0 must be left cycling over the 8-byte mag frame.
	if got := f.regs[regI2CSlv0Reg]; got != akST1 {
		t.Errorf("I2C_SLV0_REG = 0x%02X, want ST1 (0x%02X)", got, akST1)
	}
	if got := f.regs[regI2CSlv0Ctrl]; got != bitSlv0En|8 {
		t.Errorf("I2C_SLV0_CTRL = 0x%02X, want 0x%02X", got, bitSlv0En|8)
	}

	if s.adjX != 1.1640625 || s.adjY != 1.203125 || s.adjZ != 1.0 {
		t.Errorf("sensitivity adj = (%v, %v, %v), want (1.1640625, 1.203125, 1)", s.adjX, s.adjY, s.adjZ)
	}
}

func TestMPUSourceReadMagField(t *testing.T) {
	f := newFakeIMU()
	s := newMPUSource(f, 0, 0)
	if err := s.init(0, 1, 0x06); err != nil {
		t.Fatalf("init: %v", err)
	}

	f.setMagFrame(1234, -2000, 512, 0)
	f.runSlave0(8) // next I2C master cycle

	v, err := s.ReadMagField()
	if err != nil {
		t.Fatalf("ReadMagField: %v", err)
	}
	if want := 1234 * s.adjX; v.X != want {
		t.Errorf("X = %v, want %v", v.X, want)
	}
	if want := -2000 * s.adjY; v.Y != want {
		t.Errorf("Y = %v, want %v", v.Y, want)
	}
	if want := 512 * s.adjZ; v.Z != want {
		t.Errorf("Z = %v, want %v", v.Z, want)
	}
}

func TestMPUSourceReadMagFieldOverflow(t *testing.T) {
	f := newFakeIMU()
	s := newMPUSource(f, 0, 0)
	if err := s.init(0, 1, 0x06); err != nil {
		t.Fatalf("init: %v", err)
	}

	f.setMagFrame(100, 200, 300, akOverflow)
	f.runSlave0(8)

	if _, err := s.ReadMagField(); err == nil || !strings.Contains(err.Error(), "overflow") {
		t.Fatalf("ReadMagField error = %v, want overflow", err)
	}
}

func TestMPUSourceReadAcceleration(t *testing.T) {
	f := newFakeIMU()
	s := newMPUSource(f, 0, 0)

	// Big-endian, unlike the mag frame.
	for i, b := range []byte{0x10, 0x00, 0xF0, 0x00, 0x00, 0x64} {
		f.regs[regAccelXoutH+byte(i)] = b
	}

	v, err := s.ReadAcceleration()
	if err != nil {
		t.Fatalf("ReadAcceleration: %v", err)
	}
	if v.X != 4096 || v.Y != -4096 || v.Z != 100 {
		t.Errorf("acc = %+v, want (4096, -4096, 100)", v)
	}
}

func TestMPUSourceReadFailure(t *testing.T) {
	f := newFakeIMU()
	s := newMPUSource(f, 0, 0)
	readErr := errors.New("bus gone")
	f.failRead = readErr

	if _, err := s.ReadMagField(); !errors.Is(err, readErr) {
		t.Errorf("ReadMagField error = %v, want wrapped %v", err, readErr)
	}
	if _, err := s.ReadAcceleration(); !errors.Is(err, readErr) {
		t.Errorf("ReadAcceleration error = %v, want wrapped %v", err, readErr)
	}
}
