// Package mqtt provides MQTT client connectivity for railcontrol.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT connects the core to hardware bridge processes that speak the wire
// protocols of the command stations. The core publishes commands on
// railcontrol/command/{control} and receives occupancy changes on
// railcontrol/feedback/{control}/{pin}. Runtime state is mirrored to retained
// railcontrol/core/... topics for dashboards.
//
//	railcontrol core ↔ MQTT Broker ↔ Hardware Bridges
//
// # Security Considerations
//
//   - TLS should be enabled when the broker is not on the local host (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCoreEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.PublishRetained(mqtt.Topics{}.CoreBooster(), []byte(`{"state":"go"}`))
package mqtt
