// Package medium provides in-process event sources ships can bind to.
package medium

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/orbitfleet/internal/core/events/bus"
	"github.com/zeusync/orbitfleet/internal/fleet"
)

// Event names advertised by the stock mediums.
const (
	EventCommand   = "command"
	EventBroadcast = "broadcast"
)

var (
	ErrUnsupportedEvent = errors.New("event not supported by medium")
	ErrBadPayload       = errors.New("event payload is not a command message")
)

var (
	_ fleet.Medium     = (*Medium)(nil)
	_ fleet.Subscriber = (*Medium)(nil)
)

// Medium is a named broadcast channel with a fixed set of event names. Every
// subscriber of an event receives every message published on it; ships pick
// out the ones addressed to them.
type Medium struct {
	name   string
	events []string
	bus    bus.EventBus
}

// New creates a medium advertising the given events.
func New(name string, events ...string) *Medium {
	return &Medium{
		name:   name,
		events: slices.Compact(slices.Sorted(slices.Values(events))),
		bus:    bus.New(),
	}
}

// NewMediator is the single-channel relay used by the control console.
func NewMediator() *Medium {
	return New("mediator", EventCommand)
}

// NewBus is the fleet-wide bus medium.
func NewBus() *Medium {
	return New("bus", EventCommand, EventBroadcast)
}

func (m *Medium) Name() string { return m.name }

// Events returns the advertised event names, sorted.
func (m *Medium) Events() []string { return slices.Clone(m.events) }

func (m *Medium) Supports(event string) bool {
	_, found := slices.BinarySearch(m.events, event)
	return found
}

// On subscribes handler to event.
func (m *Medium) On(event string, handler fleet.Handler) (fleet.Subscription, error) {
	if !m.Supports(event) {
		return nil, fmt.Errorf("%s/%s: %w", m.name, event, ErrUnsupportedEvent)
	}
	if handler == nil {
		return nil, errors.New("nil handler")
	}
	sub, err := m.bus.Subscribe(event, func(e bus.Event) error {
		msg, ok := e.Data().(fleet.Message)
		if !ok {
			return fmt.Errorf("%s/%s: %w", e.Source(), e.Type(), ErrBadPayload)
		}
		handler(msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Send publishes msg on event to every subscriber.
func (m *Medium) Send(event string, msg fleet.Message) error {
	if !m.Supports(event) {
		return fmt.Errorf("%s/%s: %w", m.name, event, ErrUnsupportedEvent)
	}
	return m.bus.Publish(bus.NewEvent(event, m.name, msg))
}

// Observe registers a delivery observer, for example a metrics collector.
func (m *Medium) Observe(obs bus.EventBusObserver) {
	m.bus.AddObserver(obs)
}

// Registry looks mediums up by name for config wiring and remote senders.
type Registry struct {
	byName map[string]*Medium
}

func NewRegistry(mediums ...*Medium) *Registry {
	r := &Registry{byName: make(map[string]*Medium, len(mediums))}
	for _, m := range mediums {
		r.Add(m)
	}
	return r
}

// Add registers m, replacing any medium with the same name.
func (r *Registry) Add(m *Medium) {
	r.byName[m.name] = m
}

func (r *Registry) Get(name string) (*Medium, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names returns the registered medium names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(func(yield func(string) bool) {
		for name := range r.byName {
			if !yield(name) {
				return
			}
		}
	})
}
