package fleet

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
)

type viewEvent struct {
	kind     string
	id       string
	rotation float64
	energy   float64
}

type recordingView struct {
	events []viewEvent
	// onUpdate runs after an update is recorded.
	onUpdate func(id string)
}

func (v *recordingView) OnShipCreated(id string, energy float64) {
	v.events = append(v.events, viewEvent{kind: "created", id: id, energy: energy})
}

func (v *recordingView) OnShipDestroyed(id string) {
	v.events = append(v.events, viewEvent{kind: "destroyed", id: id})
}

func (v *recordingView) OnShipUpdated(id string, rotation, energy float64) {
	v.events = append(v.events, viewEvent{kind: "updated", id: id, rotation: rotation, energy: energy})
	if v.onUpdate != nil {
		v.onUpdate(id)
	}
}

func (v *recordingView) count(kind, id string) int {
	n := 0
	for _, e := range v.events {
		if e.kind == kind && e.id == id {
			n++
		}
	}
	return n
}

// fakeMedium is a broadcast medium keeping handlers in a slice.
type fakeMedium struct {
	name     string
	events   map[string]bool
	handlers map[string][]*fakeSub
	failOn   string
}

type fakeSub struct {
	handler   Handler
	cancelled bool
}

func (s *fakeSub) Cancel() error {
	s.cancelled = true
	return nil
}

func newFakeMedium(name string, events ...string) *fakeMedium {
	m := &fakeMedium{name: name, events: map[string]bool{}, handlers: map[string][]*fakeSub{}}
	for _, e := range events {
		m.events[e] = true
	}
	return m
}

func (m *fakeMedium) Name() string               { return m.name }
func (m *fakeMedium) Supports(event string) bool { return m.events[event] }

func (m *fakeMedium) On(event string, h Handler) (Subscription, error) {
	if event == m.failOn {
		return nil, errors.New("medium offline")
	}
	s := &fakeSub{handler: h}
	m.handlers[event] = append(m.handlers[event], s)
	return s, nil
}

func (m *fakeMedium) send(event string, msg Message) {
	for _, s := range m.handlers[event] {
		if !s.cancelled {
			s.handler(msg)
		}
	}
}

func (m *fakeMedium) subscribers(event string) int {
	n := 0
	for _, s := range m.handlers[event] {
		if !s.cancelled {
			n++
		}
	}
	return n
}

// listenOnly exposes a name and events but cannot be subscribed to.
type listenOnly struct{}

func (listenOnly) Name() string          { return "radio" }
func (listenOnly) Supports(string) bool { return true }

func newTestFleet(t *testing.T) (*Fleet, *recordingView, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	view := &recordingView{}
	return New(DefaultConfig(), log.NewWithCore(core), view), view, logs
}
