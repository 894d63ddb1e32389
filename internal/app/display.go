// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/compass_calibration/internal/config"
)

// displayData holds the latest feed values for the OLED update loop.
type displayData struct {
	mu sync.RWMutex

	sample     SamplePayload
	haveSample bool
	result     ResultPayload
	haveResult bool
}

// RunDisplay drives an SSD1306 OLED showing calibration progress so
// the operator can follow the run without a terminal in view.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	smpToken := client.Subscribe(sampleTopic(cfg), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s SamplePayload
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: sample unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.sample = s
		data.haveSample = true
		data.mu.Unlock()
	})
	smpToken.Wait()
	if smpToken.Error() != nil {
		return smpToken.Error()
	}
	log.Printf("display: subscribed to %s", sampleTopic(cfg))

	resToken := client.Subscribe(resultTopic(cfg), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r ResultPayload
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: result unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.result = r
		data.haveResult = true
		data.mu.Unlock()
	})
	resToken.Wait()
	if resToken.Error() != nil {
		return resToken.Error()
	}
	log.Printf("display: subscribed to %s", resultTopic(cfg))

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := displayData{
			sample:     data.sample,
			haveSample: data.haveSample,
			result:     data.result,
			haveResult: data.haveResult,
		}
		data.mu.RUnlock()

		if err := updateCalibrationDisplay(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newDisplayDrawer() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func updateCalibrationDisplay(dev *ssd1306.Dev, data *displayData) error {
	img, drawer := newDisplayDrawer()

	switch {
	case data.haveResult:
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte("Calibrated"))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("O %5.0f %5.0f", data.result.XOffset, data.result.YOffset)))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("  %5.0f", data.result.ZOffset)))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("S %5.0f %5.0f", data.result.XScale, data.result.YScale)))

	case data.haveSample:
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(data.sample.Phase))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("%3d/%d", data.sample.Index+1, data.sample.Total)))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("P: %6.1f", data.sample.Pitch)))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("R: %6.1f", data.sample.Roll)))

	default:
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Compass cal"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img, drawer := newDisplayDrawer()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Compass"))

	drawer.Dot = fixed.P(10, 43)
	drawer.DrawBytes([]byte("Calibration"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
