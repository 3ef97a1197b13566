package relay

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/nerrad567/wearsync/internal/telemetry"
)

// Data paths on the channel.
const (
	sensorPathPrefix = "/sensors/"
	fallPath         = "/fall"
)

// Payload is one immutable unit of data for the paired device.
type Payload struct {
	kind      telemetry.Kind
	category  int32
	accuracy  int32
	timestamp int64
	values    []float32
	fall      bool
}

type sensorWire struct {
	Accuracy  int32     `json:"accuracy"`
	Timestamp int64     `json:"timestamp"`
	Values    []float32 `json:"values"`
}

type fallWire struct {
	FallState bool `json:"fallstate"`
}

// NewSensorPayload builds a sensor payload. values is copied.
func NewSensorPayload(category, accuracy int32, timestamp int64, values []float32) Payload {
	v := make([]float32, len(values))
	copy(v, values)
	return Payload{
		kind:      telemetry.KindSensor,
		category:  category,
		accuracy:  accuracy,
		timestamp: timestamp,
		values:    v,
	}
}

// NewFallPayload builds the fall-detected flag payload.
func NewFallPayload(fall bool) Payload {
	return Payload{kind: telemetry.KindFall, fall: fall}
}

// Kind returns the payload family.
func (p Payload) Kind() telemetry.Kind { return p.kind }

// Category returns the sensor category; zero for fall payloads.
func (p Payload) Category() int32 { return p.category }

// Accuracy returns the sensor accuracy.
func (p Payload) Accuracy() int32 { return p.accuracy }

// Timestamp returns the sample time reported by the sensor.
func (p Payload) Timestamp() int64 { return p.timestamp }

// Values returns a copy of the sensor readings.
func (p Payload) Values() []float32 { return slices.Clone(p.values) }

// Fall returns the fall-detected flag.
func (p Payload) Fall() bool { return p.fall }

// Path returns the data path: /sensors/<category> or /fall.
func (p Payload) Path() string {
	if p.kind == telemetry.KindFall {
		return fallPath
	}
	return sensorPathPrefix + strconv.FormatInt(int64(p.category), 10)
}

// Urgent reports whether the payload should bypass transport batching.
// Sensor readings are urgent; the fall flag is not.
func (p Payload) Urgent() bool {
	return p.kind == telemetry.KindSensor
}

// Encode returns the wire form of the payload.
//
// Non-finite readings cannot be encoded and return an error.
func (p Payload) Encode() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch p.kind {
	case telemetry.KindSensor:
		data, err = json.Marshal(sensorWire{
			Accuracy:  p.accuracy,
			Timestamp: p.timestamp,
			Values:    p.values,
		})
	case telemetry.KindFall:
		data, err = json.Marshal(fallWire{FallState: p.fall})
	default:
		return nil, fmt.Errorf("relay: unknown payload kind %q", p.kind)
	}
	if err != nil {
		return nil, fmt.Errorf("relay: encoding %s payload: %w", p.kind, err)
	}
	return data, nil
}
