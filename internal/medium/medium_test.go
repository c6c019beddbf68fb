package medium

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
)

type countingObserver struct{ handlers int }

func (o *countingObserver) OnDelivered(_ string, handlers int, _ error, _ time.Duration) {
	o.handlers += handlers
}

func TestMediumAdvertisesEvents(t *testing.T) {
	m := NewBus()
	assert.Equal(t, "bus", m.Name())
	assert.Equal(t, []string{EventBroadcast, EventCommand}, m.Events())
	assert.True(t, m.Supports(EventCommand))
	assert.False(t, m.Supports("telemetry"))

	_, err := m.On("telemetry", func(fleet.Message) {})
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
	assert.ErrorIs(t, m.Send("telemetry", fleet.Message{}), ErrUnsupportedEvent)
}

func TestShipsReceiveCommandsThroughMedium(t *testing.T) {
	f := fleet.New(fleet.DefaultConfig(), log.NewNop(), nil)
	mediator := NewMediator()
	obs := &countingObserver{}
	mediator.Observe(obs)

	bind := []fleet.Binding{{Medium: mediator, Events: []string{EventCommand}}}
	a, err := f.Create("A", bind, fleet.Options{})
	require.NoError(t, err)
	b, err := f.Create("B", bind, fleet.Options{})
	require.NoError(t, err)

	require.NoError(t, mediator.Send(EventCommand, fleet.Message{TargetID: "A", Command: fleet.CommandRun}))
	assert.Equal(t, fleet.Running, a.State())
	assert.Equal(t, fleet.Stopped, b.State())
	assert.Equal(t, 2, obs.handlers)

	require.NoError(t, mediator.Send(EventCommand, fleet.Message{TargetID: "A", Command: fleet.CommandDestroy}))
	_, ok := f.Lookup("A")
	assert.False(t, ok)

	// the destroyed ship is no longer subscribed
	obs.handlers = 0
	require.NoError(t, mediator.Send(EventCommand, fleet.Message{TargetID: "B", Command: fleet.CommandRun}))
	assert.Equal(t, 1, obs.handlers)
	assert.Equal(t, fleet.Running, b.State())
}

func TestRegistryLooksUpByName(t *testing.T) {
	r := NewRegistry(NewMediator(), NewBus())
	r.Add(New("radio", "command"))

	m, ok := r.Get("radio")
	require.True(t, ok)
	assert.True(t, m.Supports("command"))

	_, ok = r.Get("laser")
	assert.False(t, ok)
	assert.Equal(t, []string{"bus", "mediator", "radio"}, r.Names())
}
