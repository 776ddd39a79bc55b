// Package mqtt provides MQTT client connectivity for the indicator.
//
// This package manages:
//   - Connection to the broker with auto-reconnect (paho)
//   - Message publishing with QoS validation
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament on the status topic for offline detection
//
// Transport reliability (reconnect backoff, TLS) is delegated to paho; the
// network bridge above this package treats every publish as best-effort.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.WaterLevel(), 1,
//	    func(topic string, payload []byte) error {
//	        return bridge.HandleWaterLevel(topic, payload)
//	    })
package mqtt
