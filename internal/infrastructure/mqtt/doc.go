// Package mqtt provides the sync channel between paired devices.
//
// The wearable publishes sensor readings and the fall flag; the handheld
// subscribes to the same pair namespace. The broker decouples the two so
// neither has to be online when the other sends.
//
//	wearable ──► broker ──► handheld
//	   wearsync/{pair_id}/sensors/{category}
//	   wearsync/{pair_id}/fall
//
// # Handshake model
//
// New builds the client without connecting. Connect starts an asynchronous
// handshake and returns; IsConnecting is true while it (or an automatic
// reconnect) is in progress; BlockingConnect waits for it with a bound.
// Put publishes one payload and reports completion on a buffered channel.
//
// # Presence
//
// Each device publishes a retained status on wearsync/{pair_id}/status/{device_id}
// and registers an LWT on the same topic for crash detection.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, cfg.Device)
//	client.Connect()
//	defer client.Close()
//
//	if err := <-client.Put("/fall", []byte(`{"fallstate":true}`), false); err != nil {
//	    log.Printf("fall not delivered: %v", err)
//	}
package mqtt
