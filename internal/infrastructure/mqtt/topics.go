package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every wearsync topic.
//
// Sync topics:    wearsync/{pair_id}/{path}          (path = sensors/{category} or fall)
// Status topics:  wearsync/{pair_id}/status/{device_id}
// Capture topics: wearsync/{device_id}/capture/{kind} (local producer → this client)
const TopicPrefix = "wearsync"

// Topics provides builders for wearsync MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// Sync maps a data path (e.g. "/sensors/1") into the pair's namespace.
//
// Example: wearsync/alice/sensors/1
func (Topics) Sync(pairID, path string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, pairID, strings.TrimPrefix(path, "/"))
}

// Sensor returns the sync topic for one sensor category.
//
// Example: wearsync/alice/sensors/1
func (t Topics) Sensor(pairID string, category int32) string {
	return t.Sync(pairID, fmt.Sprintf("sensors/%d", category))
}

// Fall returns the sync topic for the fall-detected flag.
//
// Example: wearsync/alice/fall
func (t Topics) Fall(pairID string) string {
	return t.Sync(pairID, "fall")
}

// AllSync returns a wildcard matching every payload of the pair.
//
// Example: wearsync/alice/#
func (Topics) AllSync(pairID string) string {
	return fmt.Sprintf("%s/%s/#", TopicPrefix, pairID)
}

// Status returns the retained presence topic of one device in the pair.
//
// Example: wearsync/alice/status/watch-7
func (Topics) Status(pairID, deviceID string) string {
	return fmt.Sprintf("%s/%s/status/%s", TopicPrefix, pairID, deviceID)
}

// CaptureSample returns the topic the local sensor process publishes raw samples on.
//
// Example: wearsync/watch-7/capture/sample
func (Topics) CaptureSample(deviceID string) string {
	return fmt.Sprintf("%s/%s/capture/sample", TopicPrefix, deviceID)
}

// CaptureFall returns the topic for locally detected fall state changes.
//
// Example: wearsync/watch-7/capture/fall
func (Topics) CaptureFall(deviceID string) string {
	return fmt.Sprintf("%s/%s/capture/fall", TopicPrefix, deviceID)
}

// CaptureFilter returns the topic the UI uses to select the active category.
//
// Example: wearsync/watch-7/capture/filter
func (Topics) CaptureFilter(deviceID string) string {
	return fmt.Sprintf("%s/%s/capture/filter", TopicPrefix, deviceID)
}

// AllCapture returns a wildcard matching every capture topic of the device.
//
// Example: wearsync/watch-7/capture/+
func (Topics) AllCapture(deviceID string) string {
	return fmt.Sprintf("%s/%s/capture/+", TopicPrefix, deviceID)
}

// validPublishTopic reports whether topic can be published to.
// Wildcards are only legal in subscriptions.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
