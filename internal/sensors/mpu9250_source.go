// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/compass_calibration/internal/config"
	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// regConn is the register-level transport to the MPU-9250. The SPI
// wiring below implements it for hardware; tests substitute a fake.
type regConn interface {
	readRegs(reg byte, n int) ([]byte, error)
	writeReg(reg, val byte) error
}

// spiRegs drives the IMU over SPI with a manually toggled chip-select
// line. The on-board wiring routes CS to a plain GPIO, so the port is
// connected with spi.NoCS and the pin is held around each transfer.
type spiRegs struct {
	conn spi.Conn
	cs   gpio.PinOut
}

func (t *spiRegs) readRegs(reg byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = reg | spiReadFlag
	r := make([]byte, n+1)
	if err := t.cs.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("CS assert: %w", err)
	}
	err := t.conn.Tx(w, r)
	if csErr := t.cs.Out(gpio.High); err == nil && csErr != nil {
		err = fmt.Errorf("CS release: %w", csErr)
	}
	if err != nil {
		return nil, err
	}
	return r[1:], nil
}

func (t *spiRegs) writeReg(reg, val byte) error {
	if err := t.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("CS assert: %w", err)
	}
	err := t.conn.Tx([]byte{reg &^ spiReadFlag, val}, nil)
	if csErr := t.cs.Out(gpio.High); err == nil && csErr != nil {
		err = fmt.Errorf("CS release: %w", csErr)
	}
	return err
}

// mpuSource reads the MPU-9250 accelerometer directly and the AK8963
// magnetometer through the IMU's internal I2C master: slave 0 is left
// cycling over ST1..ST2 and the results land in EXT_SENS_DATA.
type mpuSource struct {
	tr               regConn
	adjX, adjY, adjZ float64
	writeDelay       time.Duration
	readDelay        time.Duration
}

// NewMPU9250Source initializes the vehicle's MPU-9250 over SPI and
// returns a SampleSource reading its magnetometer and accelerometer.
func NewMPU9250Source() (mag.SampleSource, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU CS pin %q not found", cfg.IMUCSPin)
	}
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("IMU CS pin setup: %w", err)
	}

	port, err := spireg.Open(cfg.IMUSPIDevice)
	if err != nil {
		return nil, fmt.Errorf("IMU SPI open (%s): %w", cfg.IMUSPIDevice, err)
	}
	conn, err := port.Connect(physic.MegaHertz, spi.Mode3|spi.NoCS, 8)
	if err != nil {
		return nil, fmt.Errorf("IMU SPI connect: %w", err)
	}

	s := newMPUSource(&spiRegs{conn: conn, cs: cs},
		time.Duration(cfg.MagWriteDelayMS)*time.Millisecond,
		time.Duration(cfg.MagReadDelayMS)*time.Millisecond)
	if err := s.init(cfg.IMUAccelRange, cfg.MagScale, cfg.MagMode); err != nil {
		return nil, err
	}
	return s, nil
}

func newMPUSource(tr regConn, writeDelay, readDelay time.Duration) *mpuSource {
	return &mpuSource{tr: tr, adjX: 1, adjY: 1, adjZ: 1, writeDelay: writeDelay, readDelay: readDelay}
}

// init resets the device, sets the accelerometer range, brings up the
// internal I2C master and puts the magnetometer into its measurement
// mode, reading the factory sensitivity adjustment on the way.
func (s *mpuSource) init(accelRange, magScale, magMode byte) error {
	if err := s.tr.writeReg(regPwrMgmt1, bitHReset); err != nil {
		return fmt.Errorf("IMU reset: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := s.tr.writeReg(regPwrMgmt1, pwrClockAuto); err != nil {
		return fmt.Errorf("IMU wake: %w", err)
	}

	id, err := s.tr.readRegs(regWhoAmI, 1)
	if err != nil {
		return fmt.Errorf("IMU WHO_AM_I: %w", err)
	}
	log.Printf("IMU: WHO_AM_I = 0x%02X", id[0])

	steps := []struct {
		reg, val byte
	}{
		{regConfig, dlpf41Hz},
		{regAccelConfig2, dlpf41Hz},
		{regSmplrtDiv, 9}, // 1 kHz / (1+9) = 100 Hz, matches the mag rate
		{regAccelConfig, accelRange << 3},
		{regUserCtrl, bitI2CMstEn},
		{regI2CMstCtrl, i2cMstClk400kHz},
	}
	for _, st := range steps {
		if err := s.tr.writeReg(st.reg, st.val); err != nil {
			return fmt.Errorf("IMU register 0x%02X setup: %w", st.reg, err)
		}
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", accelRange, []int{2, 4, 8, 16}[accelRange])

	if err := s.initMag(magScale, magMode); err != nil {
		// Unlike the producers, calibration is pointless without the mag.
		return fmt.Errorf("magnetometer initialization: %w", err)
	}
	return nil
}

func (s *mpuSource) initMag(magScale, magMode byte) error {
	if id, err := s.magRead(akWIA, 1); err != nil {
		log.Printf("IMU: WARNING: failed to read magnetometer ID: %v", err)
	} else if id[0] != akDeviceID {
		log.Printf("IMU: WARNING: magnetometer WHO_AM_I = 0x%02X, want 0x%02X", id[0], akDeviceID)
	} else {
		log.Printf("IMU: magnetometer WHO_AM_I = 0x%02X", id[0])
	}

	// Sensitivity adjustment lives in the fuse ROM, readable only in
	// the fuse-ROM access mode.
	if err := s.magWrite(akCNTL1, akPowerDown); err != nil {
		return fmt.Errorf("mag power down: %w", err)
	}
	if err := s.magWrite(akCNTL1, akFuseROM); err != nil {
		return fmt.Errorf("mag fuse ROM mode: %w", err)
	}
	asa, err := s.magRead(akASAX, 3)
	if err != nil {
		return fmt.Errorf("mag sensitivity read: %w", err)
	}
	// H_adj = H * ((ASA-128)*0.5/128 + 1), per the AK8963 datasheet.
	adj := func(v byte) float64 { return (float64(v)-128)/256 + 1 }
	s.adjX, s.adjY, s.adjZ = adj(asa[0]), adj(asa[1]), adj(asa[2])
	log.Printf("IMU: mag sensitivity adj: X=%.4f Y=%.4f Z=%.4f", s.adjX, s.adjY, s.adjZ)

	if err := s.magWrite(akCNTL1, akPowerDown); err != nil {
		return fmt.Errorf("mag power down: %w", err)
	}
	if err := s.magWrite(akCNTL1, magScale<<4|magMode); err != nil {
		return fmt.Errorf("mag measurement mode: %w", err)
	}

	// Leave slave 0 cycling over ST1..ST2 (8 bytes) so every IMU
	// sample refreshes EXT_SENS_DATA with a full mag frame.
	if err := s.tr.writeReg(regI2CSlv0Addr, akI2CAddr|bitI2CRead); err != nil {
		return fmt.Errorf("mag slave addr: %w", err)
	}
	if err := s.tr.writeReg(regI2CSlv0Reg, akST1); err != nil {
		return fmt.Errorf("mag slave reg: %w", err)
	}
	if err := s.tr.writeReg(regI2CSlv0Ctrl, bitSlv0En|8); err != nil {
		return fmt.Errorf("mag slave enable: %w", err)
	}
	time.Sleep(s.readDelay)
	return nil
}

// magWrite writes one AK8963 register through I2C master slave 0.
func (s *mpuSource) magWrite(reg, val byte) error {
	steps := []struct {
		reg, val byte
	}{
		{regI2CSlv0Addr, akI2CAddr},
		{regI2CSlv0Reg, reg},
		{regI2CSlv0DO, val},
		{regI2CSlv0Ctrl, bitSlv0En | 1},
	}
	for _, st := range steps {
		if err := s.tr.writeReg(st.reg, st.val); err != nil {
			return err
		}
	}
	time.Sleep(s.writeDelay)
	return nil
}

// magRead reads n AK8963 registers through slave 0; the transfer lands
// in EXT_SENS_DATA after the next I2C master cycle.
func (s *mpuSource) magRead(reg byte, n int) ([]byte, error) {
	steps := []struct {
		reg, val byte
	}{
		{regI2CSlv0Addr, akI2CAddr | bitI2CRead},
		{regI2CSlv0Reg, reg},
		{regI2CSlv0Ctrl, bitSlv0En | byte(n)},
	}
	for _, st := range steps {
		if err := s.tr.writeReg(st.reg, st.val); err != nil {
			return nil, err
		}
	}
	time.Sleep(s.readDelay)
	return s.tr.readRegs(regExtSensData00, n)
}

// ReadMagField reads one magnetometer sample with the factory
// sensitivity adjustment applied. Axis values are little-endian.
func (s *mpuSource) ReadMagField() (mag.Vec3, error) {
	b, err := s.tr.readRegs(regExtSensData00, 8)
	if err != nil {
		return mag.Vec3{}, fmt.Errorf("magnetometer read: %w", err)
	}
	// b[0] is ST1, b[1..6] the axes, b[7] ST2.
	if b[7]&akOverflow != 0 {
		return mag.Vec3{}, fmt.Errorf("magnetometer overflow")
	}
	x := int16(uint16(b[2])<<8 | uint16(b[1]))
	y := int16(uint16(b[4])<<8 | uint16(b[3]))
	z := int16(uint16(b[6])<<8 | uint16(b[5]))
	return mag.Vec3{
		X: float64(x) * s.adjX,
		Y: float64(y) * s.adjY,
		Z: float64(z) * s.adjZ,
	}, nil
}

// ReadAcceleration reads one accelerometer sample in raw counts. Units
// do not matter downstream, only the ratios. Axis values are
// big-endian, unlike the magnetometer's.
func (s *mpuSource) ReadAcceleration() (mag.Vec3, error) {
	b, err := s.tr.readRegs(regAccelXoutH, 6)
	if err != nil {
		return mag.Vec3{}, fmt.Errorf("IMU accel read: %w", err)
	}
	ax := int16(uint16(b[0])<<8 | uint16(b[1]))
	ay := int16(uint16(b[2])<<8 | uint16(b[3]))
	az := int16(uint16(b[4])<<8 | uint16(b[5]))
	return mag.Vec3{X: float64(ax), Y: float64(ay), Z: float64(az)}, nil
}
