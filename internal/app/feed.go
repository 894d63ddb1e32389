// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/compass_calibration/internal/calib"
	"github.com/relabs-tech/compass_calibration/internal/config"
	"github.com/relabs-tech/compass_calibration/internal/mag"
)

// Topic defaults when the config file leaves them unset.
const (
	defaultTopicSample  = "compass/calibration/sample"
	defaultTopicResult  = "compass/calibration/result"
	defaultTopicHeading = "compass/heading/reference"
)

func sampleTopic(cfg *config.Config) string {
	if cfg.TopicSample != "" {
		return cfg.TopicSample
	}
	return defaultTopicSample
}

func resultTopic(cfg *config.Config) string {
	if cfg.TopicResult != "" {
		return cfg.TopicResult
	}
	return defaultTopicResult
}

func headingTopic(cfg *config.Config) string {
	if cfg.TopicHeading != "" {
		return cfg.TopicHeading
	}
	return defaultTopicHeading
}

// SamplePayload is the JSON schema published per collected sample.
// Consumed by the console monitor, the web monitor and the OLED
// display; purely observational.
type SamplePayload struct {
	Phase string   `json:"phase"`
	Index int      `json:"index"`
	Total int      `json:"total"`
	Mag   mag.Vec3 `json:"mag"`
	Acc   mag.Vec3 `json:"acc"`
	Pitch float64  `json:"pitch"`
	Roll  float64  `json:"roll"`
	Time  string   `json:"time"`
}

// ResultPayload is the finished record, published retained so late
// subscribers still see the last calibration.
type ResultPayload struct {
	XOffset float64 `json:"xoffset"`
	YOffset float64 `json:"yoffset"`
	ZOffset float64 `json:"zoffset"`
	XScale  float64 `json:"xscale"`
	YScale  float64 `json:"yscale"`
	ZScale  float64 `json:"zscale"`
	Time    string  `json:"time"`
}

type telemetryFeed struct {
	client      mqtt.Client
	sampleTopic string
	resultTopic string
}

func newTelemetryFeed(cfg *config.Config) (*telemetryFeed, error) {
	clientID := cfg.MQTTClientIDCalibration
	if clientID == "" {
		clientID = "compass-calibration"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("calibration: connected to MQTT broker at %s", cfg.MQTTBroker)

	return &telemetryFeed{
		client:      client,
		sampleTopic: sampleTopic(cfg),
		resultTopic: resultTopic(cfg),
	}, nil
}

// publishSample is fire-and-forget: the sampling loop must not stall
// on a slow broker.
func (f *telemetryFeed) publishSample(phase calib.Phase, index, total int, s mag.Sample, pitch, roll float64) {
	payload := SamplePayload{
		Phase: phase.String(),
		Index: index,
		Total: total,
		Mag:   s.Mag,
		Acc:   s.Acc,
		Pitch: pitch,
		Roll:  roll,
		Time:  time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("calibration: sample marshal error: %v", err)
		return
	}
	f.client.Publish(f.sampleTopic, 0, false, b)
}

func (f *telemetryFeed) publishResult(rec calib.Record) {
	payload := ResultPayload{
		XOffset: rec.X.Offset,
		YOffset: rec.Y.Offset,
		ZOffset: rec.Z.Offset,
		XScale:  rec.X.Scale,
		YScale:  rec.Y.Scale,
		ZScale:  rec.Z.Scale,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("calibration: result marshal error: %v", err)
		return
	}
	token := f.client.Publish(f.resultTopic, 0, true, b)
	token.Wait()
	if token.Error() != nil {
		log.Printf("calibration: result publish error: %v", token.Error())
	}
}

func (f *telemetryFeed) close() {
	f.client.Disconnect(250)
}
