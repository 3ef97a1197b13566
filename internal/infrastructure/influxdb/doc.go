// Package influxdb provides InfluxDB connectivity for wearsync delivery metrics.
//
// It wraps the official influxdb-client-go v2 library with connection
// verification, batched non-blocking writes and health checks. Points are
// written by the telemetry package; this package knows nothing about
// delivery outcomes.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePoint("delivery_outcome",
//	    map[string]string{"kind": "sensor", "status": "delivered"},
//	    map[string]any{"latency_ms": 12.0},
//	    time.Now())
//
// # Error Handling
//
// Writes never block and never return errors. Batch failures are delivered
// asynchronously to the callback set with SetOnError.
package influxdb
