package main

import (
	"fmt"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/config"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/logging"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/mqtt"
)

// mqttHardwareAdapter adapts the infrastructure MQTT client to the hardware
// package's MQTTClient interface. The only difference is the Subscribe
// handler type:
// - Infrastructure mqtt: mqtt.MessageHandler
// - hardware expects: func(topic string, payload []byte) error
type mqttHardwareAdapter struct {
	client *mqtt.Client
}

var _ hardware.MQTTClient = (*mqttHardwareAdapter)(nil)

// Publish implements hardware.MQTTClient.
func (a *mqttHardwareAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements hardware.MQTTClient.
func (a *mqttHardwareAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, mqtt.MessageHandler(handler))
}

// IsConnected implements hardware.MQTTClient.
func (a *mqttHardwareAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// buildHardware registers one backend per configured control. mqttClient may
// be nil when no control uses MQTT.
func buildHardware(cfg config.HardwareConfig, mqttClient hardware.MQTTClient, log *logging.Logger) (*hardware.Handler, error) {
	hwLog := log.Component("hardware")

	handler := hardware.NewHandler()
	handler.SetLogger(hwLog)

	for _, c := range cfg.Controls {
		id := hardware.ControlID(c.ID)

		var backend hardware.Backend
		switch c.Type {
		case "virtual":
			backend = hardware.NewVirtual(c.Name, hwLog)
		case "mqtt":
			if mqttClient == nil {
				_ = handler.Close()
				return nil, fmt.Errorf("control %d: mqtt backend requires mqtt.enabled", c.ID)
			}
			backend = hardware.NewMQTTBackend(id, mqttClient, hwLog)
		default:
			_ = handler.Close()
			return nil, fmt.Errorf("control %d: unknown type %q", c.ID, c.Type)
		}

		if err := handler.Register(hardware.Control{
			ID:      id,
			Name:    c.Name,
			Backend: backend,
			Pulse:   time.Duration(c.PulseMS) * time.Millisecond,
		}); err != nil {
			_ = backend.Close()
			_ = handler.Close()
			return nil, fmt.Errorf("registering control %d: %w", c.ID, err)
		}
	}
	return handler, nil
}

// usesMQTT reports whether any control is bridged over MQTT.
func usesMQTT(cfg config.HardwareConfig) bool {
	for _, c := range cfg.Controls {
		if c.Type == "mqtt" {
			return true
		}
	}
	return false
}
