package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/wearsync/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds one TCP/TLS dial inside paho; the
	// handshake as a whole is bounded by BlockingConnect's caller.
	defaultConnectTimeout = 10 * time.Second

	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 500 // milliseconds
	defaultKeepAlive         = 30 * time.Second

	maxQoS = 2
)

// buildClientOptions maps config onto paho options. ConnectRetry keeps the
// first handshake in progress until the broker answers; clean sessions mean
// nothing queued survives a restart.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// presence is the retained message on a device's status topic.
type presence struct {
	Status    string `json:"status"`
	DeviceID  string `json:"device_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func presencePayload(device config.DeviceConfig, status, reason string) string {
	data, err := json.Marshal(presence{
		Status:    status,
		DeviceID:  device.ID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Only strings are marshalled.
		panic(err)
	}
	return string(data)
}

// configureLWT registers the retained offline message the broker publishes
// for us if the connection drops without a clean Close.
func configureLWT(opts *pahomqtt.ClientOptions, device config.DeviceConfig) {
	opts.SetWill(Topics{}.Status(device.PairID, device.ID),
		presencePayload(device, "offline", "unexpected_disconnect"), 1, true)
}

func buildOnlinePayload(device config.DeviceConfig) string {
	return presencePayload(device, "online", "")
}

func buildOfflinePayload(device config.DeviceConfig) string {
	return presencePayload(device, "offline", "graceful_shutdown")
}
