package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/wearsync/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the sync channel between paired devices.
//
// Unlike a fire-and-wait connection, the handshake is asynchronous: Connect
// starts it and returns, IsConnecting reports whether one is in flight, and
// BlockingConnect waits for it with a bound. Put delivers one payload and
// reports completion on a channel.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	device  config.DeviceConfig

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected and pending describe the handshake state. pending is non-nil
	// while an initial connect or an automatic reconnect is in progress.
	connected bool
	pending   *handshake
	connMu    sync.Mutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// handshake is one connection attempt. done is closed when it resolves;
// err is only read after done is closed.
type handshake struct {
	done chan struct{}
	err  error
}

func newHandshake() *handshake {
	return &handshake{done: make(chan struct{})}
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// The returned error is logged but does not affect acknowledgment.
type MessageHandler func(topic string, payload []byte) error

// New builds a client for the configured broker without touching the network.
// Call Connect (or BlockingConnect) to start the handshake.
func New(cfg config.MQTTConfig, device config.DeviceConfig) *Client {
	opts := buildClientOptions(cfg)
	configureLWT(opts, device)

	c := &Client{
		cfg:           cfg,
		device:        device,
		options:       opts,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.handleReconnecting()
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect begins establishing the connection and returns immediately.
//
// It is idempotent: calling it while connected or while a handshake is in
// flight does nothing.
func (c *Client) Connect() {
	c.connMu.Lock()
	if c.connected || c.pending != nil {
		c.connMu.Unlock()
		return
	}
	h := newHandshake()
	c.pending = h
	c.connMu.Unlock()

	token := c.client.Connect()

	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.resolveHandshake(h, fmt.Errorf("%w: %w", ErrConnectionFailed, err))
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handshake failed", "error", err)
			}
			return
		}
		c.markConnected()
	}()
}

// BlockingConnect starts a handshake if needed and waits for it to resolve.
//
// Returns:
//   - nil once connected
//   - ErrTimeout if the handshake did not finish within timeout (also
//     matches context.DeadlineExceeded)
//   - ErrConnectionFailed (wrapped) if the transport reported failure
func (c *Client) BlockingConnect(timeout time.Duration) error {
	c.Connect()

	c.connMu.Lock()
	if c.connected {
		c.connMu.Unlock()
		return nil
	}
	h := c.pending
	c.connMu.Unlock()

	if h == nil {
		// Resolved between Connect and the lock above.
		if c.IsConnected() {
			return nil
		}
		return ErrConnectionFailed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.err
	case <-timer.C:
		return fmt.Errorf("%w: handshake not complete after %v: %w", ErrTimeout, timeout, context.DeadlineExceeded)
	}
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected && c.client.IsConnected()
}

// IsConnecting reports whether a handshake (initial or automatic reconnect)
// is in progress.
func (c *Client) IsConnecting() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.pending != nil
}

// handleConnect is called by paho when the connection is established,
// including after an automatic reconnect.
func (c *Client) handleConnect() {
	c.markConnected()

	c.restoreSubscriptions()
	c.publishStatus(buildOnlinePayload(c.device))

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called by paho when an established connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// handleReconnecting is called by paho before each automatic reconnect attempt.
func (c *Client) handleReconnecting() {
	c.connMu.Lock()
	c.connected = false
	if c.pending == nil {
		c.pending = newHandshake()
	}
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Info("MQTT reconnecting")
	}
}

// markConnected records a successful handshake and releases any waiters.
func (c *Client) markConnected() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.connected = true
	if h := c.pending; h != nil {
		c.pending = nil
		close(h.done)
	}
}

// resolveHandshake fails h if it is still the pending attempt.
func (c *Client) resolveHandshake(h *handshake, err error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.pending != h {
		return
	}
	c.pending = nil
	h.err = err
	close(h.done)
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishStatus publishes this device's retained presence message.
func (c *Client) publishStatus(payload string) pahomqtt.Token {
	topic := Topics{}.Status(c.device.PairID, c.device.ID)
	return c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the broker.
//
// It publishes a graceful offline status (distinct from the LWT crash
// status) when connected, then disconnects with a quiesce period. An
// in-flight handshake is failed with ErrNotConnected.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.publishStatus(buildOfflinePayload(c.device))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	h := c.pending
	c.connMu.Unlock()
	if h != nil {
		c.resolveHandshake(h, ErrNotConnected)
	}

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// SetOnConnect sets a callback invoked on initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handshake and handler diagnostics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
