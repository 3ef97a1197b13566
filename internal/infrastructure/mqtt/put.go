package mqtt

import (
	"fmt"
	"strings"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Put delivers one payload to the paired device and returns immediately.
//
// The path (e.g. "/sensors/1", "/fall") is placed under the pair's topic
// namespace. Urgent payloads are published with mqtt.urgent_qos for the
// lowest latency; others use mqtt.qos. Payloads are retained when
// mqtt.retain is set, so the paired device sees the latest value per path
// as soon as it subscribes.
//
// The returned channel receives exactly one value: nil on success, or an
// error wrapping ErrNotConnected, ErrInvalidTopic, ErrPublishFailed or
// ErrTimeout. It is buffered, so callers may abandon it.
func (c *Client) Put(path string, data []byte, urgent bool) <-chan error {
	result := make(chan error, 1)

	if strings.Trim(path, "/") == "" {
		result <- fmt.Errorf("%w: empty path", ErrInvalidTopic)
		return result
	}
	topic := Topics{}.Sync(c.device.PairID, path)
	if !validPublishTopic(topic) {
		result <- fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		return result
	}
	if len(data) > maxPayloadSize {
		result <- fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(data), maxPayloadSize)
		return result
	}

	if !c.IsConnected() {
		result <- ErrNotConnected
		return result
	}

	token := c.client.Publish(topic, c.qosFor(urgent), c.cfg.Retain, data)
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			result <- fmt.Errorf("%w: %w after %v", ErrPublishFailed, ErrTimeout, defaultPublishTimeout)
			return
		}
		if err := token.Error(); err != nil {
			result <- fmt.Errorf("%w: %w", ErrPublishFailed, err)
			return
		}
		result <- nil
	}()

	return result
}

// qosFor picks the publish QoS for a payload.
func (c *Client) qosFor(urgent bool) byte {
	if urgent {
		return byte(c.cfg.UrgentQoS)
	}
	return byte(c.cfg.QoS)
}
