// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/compass_calibration/internal/config"
	"github.com/relabs-tech/compass_calibration/internal/heading"
)

// RunHeadingProducer reads NMEA sentences from the vessel's existing
// compass, extracts headings, and publishes them as JSON to MQTT so
// the operator can cross-check the magnetometer against a known
// reference before and after calibration.
func RunHeadingProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	clientID := cfg.MQTTClientIDHeading
	if clientID == "" {
		clientID = "compass-heading-producer"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("heading producer connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Open compass serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.NMEASerialPort,
		BaudRate:              uint(cfg.NMEABaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("compass serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)
	topic := headingTopic(cfg)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("heading read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// NMEA sentences usually start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy talker or partial sentences; skip quietly
			continue
		}

		var ref heading.Reference
		switch sentence.DataType() {
		case nmea.TypeHDG:
			m := sentence.(nmea.HDG)
			ref = heading.Reference{
				HeadingDeg: m.Heading,
				Sentence:   "HDG",
				True:       false,
			}
		case nmea.TypeHDT:
			m := sentence.(nmea.HDT)
			ref = heading.Reference{
				HeadingDeg: m.Heading,
				Sentence:   "HDT",
				True:       m.True,
			}
		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)
			if m.Validity != nmea.ValidRMC {
				continue
			}
			// Course over ground only approximates heading, but it is
			// better than nothing on boats without a heading talker.
			ref = heading.Reference{
				HeadingDeg: m.Course,
				Sentence:   "RMC",
				True:       true,
			}
		default:
			continue
		}
		ref.Time = time.Now().UTC().Format(time.RFC3339)

		payload, err := json.Marshal(ref)
		if err != nil {
			log.Printf("heading JSON marshal error: %v", err)
			continue
		}

		token := client.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("heading publish error: %v", token.Error())
			continue
		}

		log.Printf("published heading: %.1f deg (%s)", ref.HeadingDeg, ref.Sentence)
	}
}
