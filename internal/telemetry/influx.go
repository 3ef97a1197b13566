package telemetry

import (
	"context"
	"strconv"
	"time"
)

// outcomeMeasurement is the InfluxDB measurement name for outcomes.
const outcomeMeasurement = "delivery_outcome"

// PointWriter is the subset of influxdb.Client the recorder uses.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// InfluxRecorder exports outcomes as time-series points tagged by kind,
// status and (for sensors) category.
type InfluxRecorder struct {
	w      PointWriter
	device string
}

// NewInfluxRecorder creates a recorder tagging every point with deviceID.
func NewInfluxRecorder(w PointWriter, deviceID string) *InfluxRecorder {
	return &InfluxRecorder{w: w, device: deviceID}
}

// Record implements Recorder. Writes are batched by the client and never fail here.
func (r *InfluxRecorder) Record(_ context.Context, o Outcome) error {
	tags := map[string]string{
		"device_id": r.device,
		"kind":      string(o.Kind),
		"status":    string(o.Status),
	}
	if o.Kind == KindSensor {
		tags["category"] = strconv.FormatInt(int64(o.Category), 10)
	}

	ts := o.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	r.w.WritePoint(outcomeMeasurement, tags, map[string]any{
		"count":      1,
		"latency_ms": float64(o.Latency.Microseconds()) / 1000,
	}, ts)
	return nil
}
