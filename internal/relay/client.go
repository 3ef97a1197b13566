package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/wearsync/internal/dispatch"
	"github.com/nerrad567/wearsync/internal/infrastructure/config"
	"github.com/nerrad567/wearsync/internal/telemetry"
)

// recordTimeout bounds a single outcome write.
const recordTimeout = 2 * time.Second

// Logger is the subset of logging.Logger the relay uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dispatcher runs sends in the background. Enqueue may drop a task when
// saturated; EnqueuePriority must not.
type Dispatcher interface {
	Enqueue(task dispatch.Task) error
	EnqueuePriority(task dispatch.Task) error
	Shutdown(ctx context.Context) error
}

// Options wires a Client. Channel, Dispatcher and Logger are required.
type Options struct {
	Channel    Channel
	Dispatcher Dispatcher
	// Recorder receives every outcome; nil discards them.
	Recorder telemetry.Recorder
	Logger   Logger
	Config   config.SyncConfig
	// Clock drives rate limiting; nil means time.Now.
	Clock func() time.Time
}

// Client relays sensor samples and the fall flag to the paired device.
//
// Thread Safety: all methods are safe for concurrent use and none of them
// block on the network.
type Client struct {
	channel    Channel
	dispatcher Dispatcher
	recorder   telemetry.Recorder
	logger     Logger
	clock      func() time.Time

	limiter *RateLimiter
	guard   *ConnectionGuard

	// fallState is the most recently requested fall flag.
	fallState atomic.Bool

	// abandoned is set when Close gave up on the drain; outcomes of sends
	// still running after that are only logged.
	abandoned atomic.Bool
}

// New creates a Client from opts.
func New(opts Options) *Client {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	c := &Client{
		channel:    opts.Channel,
		dispatcher: opts.Dispatcher,
		recorder:   recorder,
		logger:     opts.Logger,
		clock:      clock,
		limiter:    NewRateLimiter(opts.Config.ActiveWindow(), opts.Config.IdleWindow()),
		guard: NewConnectionGuard(
			opts.Channel,
			opts.Config.ConnectTimeout(),
			opts.Config.ReconnectWhenDisconnected,
		),
	}
	c.limiter.SetActiveFilter(opts.Config.InitialFilter)
	return c
}

// SetActiveFilter selects the category that may send at the fast rate.
func (c *Client) SetActiveFilter(category int32) {
	c.limiter.SetActiveFilter(category)
	c.logger.Info("active filter changed", "category", category)
}

// ActiveFilter returns the category currently sending at the fast rate.
func (c *Client) ActiveFilter() int32 {
	return c.limiter.ActiveFilter()
}

// SendSample schedules one sensor reading, or drops it when its category
// sent too recently. values is copied before SendSample returns.
func (c *Client) SendSample(category, accuracy int32, timestamp int64, values []float32) {
	if !c.limiter.Admit(category, c.clock().UnixMilli()) {
		c.logger.Debug("sample rate limited", "category", category)
		return
	}

	p := NewSensorPayload(category, accuracy, timestamp, values)
	c.submit(p, c.dispatcher.Enqueue, func() {
		c.logSample(p)
		c.deliver(p) //nolint:errcheck // outcome already logged and recorded
	})
}

// SendFallEvent schedules the fall-detected flag. It is never rate limited
// and never dropped for lack of queue space.
func (c *Client) SendFallEvent(fall bool) {
	c.fallState.Store(fall)

	p := NewFallPayload(fall)
	c.submit(p, c.dispatcher.EnqueuePriority, func() {
		if err := c.deliver(p); err != nil {
			return
		}
		c.logger.Info("fall state delivered", "fallstate", fall)

		if latest := c.fallState.Load(); latest != fall {
			c.logger.Warn("fall state changed while in flight",
				"delivered", fall,
				"latest", latest,
			)
		}
	})
}

// Close stops accepting sends and waits for queued ones to finish or for
// ctx to expire. After an expired drain, late outcomes are no longer
// recorded, since the recorder's storage may already be closed.
func (c *Client) Close(ctx context.Context) error {
	if err := c.dispatcher.Shutdown(ctx); err != nil {
		c.abandoned.Store(true)
		return err
	}
	return nil
}

func (c *Client) submit(p Payload, enqueue func(dispatch.Task) error, task dispatch.Task) {
	err := enqueue(task)
	if err == nil {
		return
	}

	status := telemetry.StatusDroppedQueueFull
	if errors.Is(err, dispatch.ErrClosed) {
		status = telemetry.StatusDroppedShutdown
	}
	c.logger.Warn("send dropped", "path", p.Path(), "error", err)
	c.record(p, status, err, 0)
}

// deliver runs on a worker: wait for readiness, encode, put and await the
// result. It returns the failure that was logged and recorded, if any.
func (c *Client) deliver(p Payload) error {
	start := time.Now()

	if err := c.guard.EnsureReady(); err != nil {
		status := telemetry.StatusConnectFailed
		if errors.Is(err, ErrConnectTimeout) {
			status = telemetry.StatusConnectTimeout
		}
		c.logger.Warn("channel not ready, payload dropped", "path", p.Path(), "error", err)
		c.record(p, status, err, time.Since(start))
		return err
	}

	data, err := p.Encode()
	if err != nil {
		c.logger.Error("payload encoding failed", "path", p.Path(), "error", err)
		c.record(p, telemetry.StatusDeliveryFailed, err, time.Since(start))
		return err
	}

	if err := <-c.channel.Put(p.Path(), data, p.Urgent()); err != nil {
		c.logger.Error("delivery failed", "path", p.Path(), "error", err)
		c.record(p, telemetry.StatusDeliveryFailed, err, time.Since(start))
		return err
	}

	latency := time.Since(start)
	c.logger.Debug("payload delivered", "path", p.Path(), "latency", latency)
	c.record(p, telemetry.StatusDelivered, nil, latency)
	return nil
}

func (c *Client) logSample(p Payload) {
	args := []any{
		"category", p.Category(),
		"accuracy", p.Accuracy(),
		"timestamp", p.Timestamp(),
		"values", p.values,
	}
	if p.Category() == c.limiter.ActiveFilter() {
		c.logger.Info("sending sample", args...)
		return
	}
	c.logger.Debug("sending sample", args...)
}

func (c *Client) record(p Payload, status telemetry.Status, err error, latency time.Duration) {
	if c.abandoned.Load() {
		c.logger.Debug("outcome not recorded after shutdown", "path", p.Path(), "status", status)
		return
	}

	o := telemetry.Outcome{
		Kind:       p.Kind(),
		Path:       p.Path(),
		Category:   p.Category(),
		Status:     status,
		Latency:    latency,
		RecordedAt: time.Now(),
	}
	if err != nil {
		o.Err = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if rerr := c.recorder.Record(ctx, o); rerr != nil {
		c.logger.Warn("recording outcome failed", "path", o.Path, "status", o.Status, "error", rerr)
	}
}
