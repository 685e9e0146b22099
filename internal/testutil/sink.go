package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/ravelchat/ravel/internal/chat"
)

// EventCollector is an in-memory chat.EventSink that records every event it
// receives, optionally failing after a set number of sends.
//
// Thread-safe for concurrent use.
type EventCollector struct {
	mu       sync.Mutex
	events   []chat.Event
	failFrom int // fail sends with index >= failFrom when >= 0
}

// NewEventCollector creates a collector that accepts every event.
func NewEventCollector() *EventCollector {
	return &EventCollector{failFrom: -1}
}

// FailAfter makes every send after the first n succeed-and-recorded sends
// return an error, simulating a dropped client connection.
func (c *EventCollector) FailAfter(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failFrom = n
}

// Send implements chat.EventSink.
func (c *EventCollector) Send(_ context.Context, event chat.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFrom >= 0 && len(c.events) >= c.failFrom {
		return errors.New("client connection closed")
	}
	c.events = append(c.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (c *EventCollector) Events() []chat.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Event(nil), c.events...)
}

// Names returns the recorded event names in order.
func (c *EventCollector) Names() []chat.EventName {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]chat.EventName, len(c.events))
	for i, e := range c.events {
		names[i] = e.Name
	}
	return names
}
