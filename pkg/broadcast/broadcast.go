// Package broadcast is an in-process, name-keyed publish/subscribe bus with
// the delivery semantics of a browser BroadcastChannel: payloads are
// JSON-serialized, delivery is fire-and-forget and lossy, and no ordering is
// guaranteed across subscribers.
package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

const subscriberBufferSize = 64

type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		logger:   logger,
	}
}

// GetOrCreate returns the single shared channel for the given name, creating
// it on first request. All callers asking for the same name receive the same
// instance.
func (r *Registry) GetOrCreate(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[name]; ok {
		return ch
	}

	ch := &Channel{
		name:        name,
		subscribers: make(map[int]*subscriber),
		logger:      r.logger,
	}
	r.channels[name] = ch

	return ch
}

// Close closes every channel in the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.channels {
		ch.Close()
	}
}

type subscriber struct {
	messages chan json.RawMessage
	once     sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() {
		close(s.messages)
	})
}

type Channel struct {
	name        string
	logger      *slog.Logger
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextId      int
	closed      bool
}

func (c *Channel) Name() string {
	return c.name
}

// Publish serializes the payload and delivers a copy to every subscriber.
// Subscribers that cannot keep up lose messages. Publishing on a closed
// channel is a no-op.
func (c *Channel) Publish(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Warn("publish on closed channel", "channel", c.name)
		return nil
	}

	for _, sub := range c.subscribers {
		select {
		case sub.messages <- data:
		default:
			c.logger.Debug("subscriber buffer full, message dropped", "channel", c.name)
		}
	}

	return nil
}

// Subscribe registers a handler for every message published on the channel
// and returns an unsubscribe func. A panicking handler is isolated: it never
// prevents other handlers from running.
func (c *Channel) Subscribe(handler func(json.RawMessage)) func() {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("subscribe on closed channel", "channel", c.name)
		return func() {}
	}

	id := c.nextId
	c.nextId++
	sub := &subscriber{messages: make(chan json.RawMessage, subscriberBufferSize)}
	c.subscribers[id] = sub
	c.mu.Unlock()

	go func() {
		for msg := range sub.messages {
			c.invoke(handler, msg)
		}
	}()

	return func() {
		c.mu.Lock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			sub.stop()
		}
		c.mu.Unlock()
	}
}

func (c *Channel) invoke(handler func(json.RawMessage), msg json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber handler panicked", "channel", c.name, "panic", r)
		}
	}()

	handler(msg)
}

// Close is idempotent. Messages published after close are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for id, sub := range c.subscribers {
		delete(c.subscribers, id)
		sub.stop()
	}
}
