// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// MPU-9250 register map, SPI side. Values per the InvenSense register
// map revision 1.6.
const (
	regSmplrtDiv     = 0x19
	regConfig        = 0x1A
	regGyroConfig    = 0x1B
	regAccelConfig   = 0x1C
	regAccelConfig2  = 0x1D
	regI2CMstCtrl    = 0x24
	regI2CSlv0Addr   = 0x25
	regI2CSlv0Reg    = 0x26
	regI2CSlv0Ctrl   = 0x27
	regIntPinCfg     = 0x37
	regAccelXoutH    = 0x3B
	regExtSensData00 = 0x49
	regI2CSlv0DO     = 0x63
	regUserCtrl      = 0x6A
	regPwrMgmt1      = 0x6B
	regWhoAmI        = 0x75
)

const (
	spiReadFlag     = 0x80 // OR into the register byte for SPI reads
	bitHReset       = 0x80 // PWR_MGMT_1: reset the whole device
	pwrClockAuto    = 0x01 // PWR_MGMT_1: auto-select best clock source
	bitI2CMstEn     = 0x20 // USER_CTRL: enable the internal I2C master
	i2cMstClk400kHz = 0x0D // I2C_MST_CTRL: 400 kHz master clock
	bitI2CRead      = 0x80 // I2C_SLVx_ADDR: transfer is a read
	bitSlv0En       = 0x80 // I2C_SLV0_CTRL: enable, low nibble is length
	dlpf41Hz        = 0x03
)

// AK8963 magnetometer, reached through the MPU-9250's I2C master.
const (
	akI2CAddr  = 0x0C
	akDeviceID = 0x48

	akWIA   = 0x00
	akST1   = 0x02
	akHXL   = 0x03
	akST2   = 0x09
	akCNTL1 = 0x0A
	akASAX  = 0x10

	akPowerDown = 0x00 // CNTL1 mode nibble
	akFuseROM   = 0x0F

	akDataReady = 0x01 // ST1
	akOverflow  = 0x80 // ST2: magnetic sensor overflow (HOFL)
)
