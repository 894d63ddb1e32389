package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/compass_calibration/internal/config"
	"github.com/relabs-tech/compass_calibration/internal/heading"
)

// RunMonitor subscribes to the calibration feed and prints each sample,
// heading reference and final result to the console.
func RunMonitor() error {
	cfg := config.Get()

	clientID := cfg.MQTTClientIDMonitor
	if clientID == "" {
		clientID = "compass-monitor"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to the per-sample feed
	smpToken := client.Subscribe(sampleTopic(cfg), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s SamplePayload
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("monitor: sample unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[SMP] %-5s %3d/%d  mag=(%8.1f %8.1f %8.1f)  pitch=%6.2f roll=%6.2f\n",
			s.Phase, s.Index+1, s.Total, s.Mag.X, s.Mag.Y, s.Mag.Z, s.Pitch, s.Roll,
		)
	})
	smpToken.Wait()
	if smpToken.Error() != nil {
		return smpToken.Error()
	}
	log.Printf("monitor: subscribed to %s", sampleTopic(cfg))

	// Subscribe to the final result
	resToken := client.Subscribe(resultTopic(cfg), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r ResultPayload
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("monitor: result unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[RES] offsets=(%.3f %.3f %.3f)  scales=(%.3f %.3f %.3f)  at=%s\n",
			r.XOffset, r.YOffset, r.ZOffset, r.XScale, r.YScale, r.ZScale, r.Time,
		)
	})
	resToken.Wait()
	if resToken.Error() != nil {
		return resToken.Error()
	}
	log.Printf("monitor: subscribed to %s", resultTopic(cfg))

	// Subscribe to the heading reference
	hdgToken := client.Subscribe(headingTopic(cfg), 0, func(_ mqtt.Client, msg mqtt.Message) {
		var h heading.Reference
		if err := json.Unmarshal(msg.Payload(), &h); err != nil {
			log.Printf("monitor: heading unmarshal error: %v", err)
			return
		}

		kind := "magnetic"
		if h.True {
			kind = "true"
		}
		fmt.Printf("[HDG] %6.1f° (%s, %s) time=%s\n", h.HeadingDeg, kind, h.Sentence, h.Time)
	})
	hdgToken.Wait()
	if hdgToken.Error() != nil {
		return hdgToken.Error()
	}
	log.Printf("monitor: subscribed to %s", headingTopic(cfg))

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("monitor: shutting down")
	client.Disconnect(250)
	return nil
}
