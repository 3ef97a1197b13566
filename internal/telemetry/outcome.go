package telemetry

import (
	"context"
	"errors"
	"time"
)

// Kind identifies the payload family of a send.
type Kind string

const (
	KindSensor Kind = "sensor"
	KindFall   Kind = "fall"
)

// Status is the terminal state of one send.
type Status string

const (
	// StatusDelivered means the channel confirmed the put.
	StatusDelivered Status = "delivered"

	// StatusConnectTimeout means the handshake did not finish in time.
	StatusConnectTimeout Status = "connect_timeout"

	// StatusConnectFailed means the handshake failed outright.
	StatusConnectFailed Status = "connect_failed"

	// StatusDeliveryFailed means the channel reported a put failure.
	StatusDeliveryFailed Status = "delivery_failed"

	// StatusDroppedQueueFull means the send never reached a worker.
	StatusDroppedQueueFull Status = "dropped_queue_full"

	// StatusDroppedShutdown means the send arrived after shutdown began.
	StatusDroppedShutdown Status = "dropped_shutdown"
)

// Outcome describes how one send ended.
type Outcome struct {
	// ID is assigned by the journal when empty.
	ID       string
	Kind     Kind
	Path     string
	Category int32
	Status   Status
	// Err is the failure text; empty when delivered.
	Err        string
	Latency    time.Duration
	RecordedAt time.Time
}

// Recorder stores or exports outcomes.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Nop discards every outcome.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Outcome) error { return nil }

// Multi forwards each outcome to every recorder in order.
type Multi []Recorder

// Record calls every recorder, even after a failure, and joins the errors.
func (m Multi) Record(ctx context.Context, o Outcome) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
