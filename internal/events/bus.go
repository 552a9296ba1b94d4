package events

import (
	"context"
	"errors"
	"log"
	"sync"
)

type Handler func(ctx context.Context, ev Event) error

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Forwarder ships events off-process, e.g. to a message broker.
type Forwarder interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Bus delivers events synchronously to in-process subscribers, whose
// errors are returned to the publisher, then forwards them to the broker.
// Forwarding failures are logged and never returned.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	forward  Forwarder
}

func NewBus(forward Forwarder) *Bus {
	return &Bus{
		handlers: map[string][]Handler{},
		forward:  forward,
	}
}

func (b *Bus) Subscribe(key string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[key] = append(b.handlers[key], h)
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Key()]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	if b.forward != nil {
		if err := b.forward.PublishJSON(ctx, ev.Key(), ev); err != nil {
			log.Printf("[events] forward %s: %v", ev.Key(), err)
		}
	}

	return errors.Join(errs...)
}

// Discard drops every event. Useful where no subscriber is wired.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
