package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/wearsync/internal/infrastructure/mqtt"
)

// ErrMalformed is returned for capture messages that cannot be decoded.
var ErrMalformed = errors.New("capture: malformed message")

// Sink receives decoded capture messages. relay.Client implements it.
type Sink interface {
	SendSample(category, accuracy int32, timestamp int64, values []float32)
	SendFallEvent(fall bool)
	SetActiveFilter(category int32)
}

// Subscriber registers a handler that survives reconnects.
type Subscriber interface {
	Track(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the subset of logging.Logger the ingress uses.
type Logger interface {
	Warn(msg string, args ...any)
}

type sampleMessage struct {
	Category  *int32    `json:"category"`
	Accuracy  int32     `json:"accuracy"`
	Timestamp int64     `json:"timestamp"`
	Values    []float32 `json:"values"`
}

type fallMessage struct {
	FallState *bool `json:"fallstate"`
}

type filterMessage struct {
	Category *int32 `json:"category"`
}

// Ingress decodes capture messages for one device.
type Ingress struct {
	sink     Sink
	deviceID string
	logger   Logger
}

// New creates an ingress feeding sink.
func New(sink Sink, deviceID string, logger Logger) *Ingress {
	return &Ingress{sink: sink, deviceID: deviceID, logger: logger}
}

// Register subscribes to every capture topic of the device. It may be
// called before the channel has connected.
func (i *Ingress) Register(sub Subscriber, qos byte) error {
	topic := mqtt.Topics{}.AllCapture(i.deviceID)
	if err := sub.Track(topic, qos, i.handle); err != nil {
		return fmt.Errorf("capture: subscribing to %s: %w", topic, err)
	}
	return nil
}

// handle logs and drops anything Handle rejects, so the transport never
// sees an error.
func (i *Ingress) handle(topic string, payload []byte) error {
	if err := i.Handle(topic, payload); err != nil {
		i.logger.Warn("capture message dropped", "topic", topic, "error", err)
	}
	return nil
}

// Handle decodes one capture message and forwards it to the sink.
func (i *Ingress) Handle(topic string, payload []byte) error {
	prefix := mqtt.TopicPrefix + "/" + i.deviceID + "/capture/"
	kind, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrMalformed, topic)
	}

	switch kind {
	case "sample":
		var msg sampleMessage
		if err := decode(payload, &msg); err != nil {
			return err
		}
		if msg.Category == nil {
			return fmt.Errorf("%w: sample without category", ErrMalformed)
		}
		i.sink.SendSample(*msg.Category, msg.Accuracy, msg.Timestamp, msg.Values)

	case "fall":
		var msg fallMessage
		if err := decode(payload, &msg); err != nil {
			return err
		}
		if msg.FallState == nil {
			return fmt.Errorf("%w: fall message without fallstate", ErrMalformed)
		}
		i.sink.SendFallEvent(*msg.FallState)

	case "filter":
		var msg filterMessage
		if err := decode(payload, &msg); err != nil {
			return err
		}
		if msg.Category == nil {
			return fmt.Errorf("%w: filter without category", ErrMalformed)
		}
		i.sink.SetActiveFilter(*msg.Category)

	default:
		return fmt.Errorf("%w: unknown capture kind %q", ErrMalformed, kind)
	}

	return nil
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}
