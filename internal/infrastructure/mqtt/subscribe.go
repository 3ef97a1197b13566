package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the specified topic.
//
// Topics can include MQTT wildcards (+ and #). The handler is called in a
// separate goroutine for each received message and is wrapped with panic
// recovery. Subscriptions are restored automatically after a reconnect.
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.AllCapture("watch-7"), 0,
//	    func(topic string, payload []byte) error {
//	        return ingress.Handle(topic, payload)
//	    })
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(topic, qos, handler)
	if err := c.subscribeNow(topic, qos, handler); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Track registers a subscription to be established on the next (re)connect
// without requiring a live connection now. Use it to declare ingress
// topics before the first handshake has finished.
func (c *Client) Track(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	c.track(topic, qos, handler)
	if c.IsConnected() {
		// The entry stays tracked on failure; the next reconnect retries it.
		return c.subscribeNow(topic, qos, handler)
	}
	return nil
}

// subscribeNow subscribes on the live connection without touching the
// tracked set.
func (c *Client) subscribeNow(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *Client) track(topic string, qos byte, handler MessageHandler) {
	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}
