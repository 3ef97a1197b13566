// Package relay forwards sensor samples and the fall-detected flag to the
// paired device.
//
// The producer (sensor callbacks, fall detector, UI filter selection) calls
// Client methods from whatever goroutine it runs on. Those calls never block
// on the network and never return errors:
//
//   - SendSample passes each sample through a RateLimiter. The active
//     category may send every 100ms, every other category every 3s.
//   - SendFallEvent is never rate limited.
//   - Admitted sends run on a bounded worker pool. Each worker makes sure
//     the channel is not mid-handshake (ConnectionGuard), encodes the
//     Payload and puts it on the Channel.
//
// Every send ends in one telemetry.Outcome, which is logged and handed to
// the configured recorder.
//
// Usage:
//
//	client := relay.New(relay.Options{
//	    Channel:    mqttClient,
//	    Dispatcher: pool,
//	    Recorder:   journal,
//	    Logger:     log,
//	    Config:     cfg.Sync,
//	})
//	client.SetActiveFilter(1)
//	client.SendSample(1, 3, sampleTimeNanos, []float32{0.1, 9.8, 0.2})
//	client.SendFallEvent(true)
package relay
