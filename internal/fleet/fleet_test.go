package fleet

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRegistersShip(t *testing.T) {
	f, view, _ := newTestFleet(t)

	s, err := f.Create("A", nil, Options{})
	require.NoError(t, err)

	got, ok := f.Lookup("A")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, f.Count())

	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, 40.0, s.Speed())
	assert.Equal(t, 100.0, s.Energy())
	assert.Equal(t, Position{Height: 100, Rotation: 0}, s.Position())
	assert.Equal(t, []viewEvent{{kind: "created", id: "A", energy: 100}}, view.events)
}

func TestCreateMergesOptionsOverDefaults(t *testing.T) {
	f, _, _ := newTestFleet(t)

	s, err := f.Create("A", nil, Options{Speed: 60, Energy: 50, State: Running, Consume: FixedRate(1)})
	require.NoError(t, err)
	assert.Equal(t, 60.0, s.Speed())
	assert.Equal(t, 50.0, s.Energy())
	assert.Equal(t, Running, s.State())

	// zero values fall back to the defaults
	z, err := f.Create("B", nil, Options{Speed: 0, Energy: 0})
	require.NoError(t, err)
	assert.Equal(t, 40.0, z.Speed())
	assert.Equal(t, 100.0, z.Energy())
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	f, view, _ := newTestFleet(t)
	m := newFakeMedium("mediator", "command")

	s, err := f.Create("A", nil, Options{State: Running})
	require.NoError(t, err)
	f.Tick(time.Second)
	before := s.Snapshot()
	events := len(view.events)

	_, err = f.Create("A", []Binding{{Medium: m, Events: []string{"command"}}}, Options{Energy: 10})
	require.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, ErrorCode(err))

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 1, f.Count())
	assert.Equal(t, 0, m.subscribers("command"), "no subscription on a failed create")
	assert.Len(t, view.events, events)
}

func TestCapacityIsFourShips(t *testing.T) {
	f, _, _ := newTestFleet(t)
	m := newFakeMedium("mediator", "command")
	bind := []Binding{{Medium: m, Events: []string{"command"}}}

	for i := 0; i < MaxShips; i++ {
		_, err := f.Create(fmt.Sprintf("S%d", i), bind, Options{})
		require.NoError(t, err)
	}

	_, err := f.Create("S4", bind, Options{})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, ErrorCode(err))
	assert.Equal(t, MaxShips, f.Count())
	assert.Equal(t, MaxShips, m.subscribers("command"))

	// a slot frees up after a destroy
	require.True(t, f.Destroy("S0"))
	_, err = f.Create("S4", bind, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2", "S3", "S4"}, f.IDs())
}

func TestDestroyRemovesShipOnce(t *testing.T) {
	f, view, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{})
	require.NoError(t, err)
	_, err = f.Create("B", nil, Options{})
	require.NoError(t, err)

	s.Destroy()
	_, ok := f.Lookup("A")
	assert.False(t, ok)
	assert.Equal(t, 1, f.Count())
	assert.Equal(t, Destroyed, s.State())

	s.Destroy()
	assert.Equal(t, 1, f.Count())
	assert.Equal(t, 1, view.count("destroyed", "A"))

	// destroyed ships ignore further transitions
	s.Run()
	assert.Equal(t, Destroyed, s.State())
	assert.False(t, f.Destroy("A"))
}

func TestRemoveIsSafeToRepeat(t *testing.T) {
	f, view, _ := newTestFleet(t)
	_, err := f.Create("A", nil, Options{})
	require.NoError(t, err)

	assert.True(t, f.Remove("A"))
	assert.False(t, f.Remove("A"))
	assert.Equal(t, 0, f.Count())
	assert.Empty(t, f.IDs())
	assert.Equal(t, 1, view.count("destroyed", "A"))
}

func TestRemoveDetachesShipFromMediums(t *testing.T) {
	f, view, _ := newTestFleet(t)
	m := newFakeMedium("mediator", "command")
	bind := []Binding{{Medium: m, Events: []string{"command"}}}

	old, err := f.Create("A", bind, Options{})
	require.NoError(t, err)
	require.True(t, f.Remove("A"))
	assert.Equal(t, Destroyed, old.State())
	assert.Equal(t, 0, m.subscribers("command"))

	fresh, err := f.Create("A", bind, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.subscribers("command"))

	m.send("command", Message{TargetID: "A", Command: CommandRun})
	assert.Equal(t, Running, fresh.State())
	assert.Equal(t, Destroyed, old.State())

	view.events = nil
	m.send("command", Message{TargetID: "A", Command: CommandDestroy})
	assert.Equal(t, 1, view.count("destroyed", "A"))
	assert.Equal(t, 0, m.subscribers("command"))
	assert.Equal(t, 0, f.Count())
}

func TestDispatchRoutesByID(t *testing.T) {
	f, _, _ := newTestFleet(t)
	a, _ := f.Create("A", nil, Options{})
	b, _ := f.Create("B", nil, Options{})

	f.Dispatch(Message{TargetID: "A", Command: CommandRun})
	assert.Equal(t, Running, a.State())
	assert.Equal(t, Stopped, b.State())

	assert.NotPanics(t, func() {
		f.Dispatch(Message{TargetID: "ghost", Command: CommandDestroy})
	})
	assert.Equal(t, 2, f.Count())
}

func TestTickAdvancesShipsInRegistrationOrder(t *testing.T) {
	f, view, _ := newTestFleet(t)
	for _, id := range []string{"C", "A", "B"} {
		_, err := f.Create(id, nil, Options{State: Running})
		require.NoError(t, err)
	}
	view.events = nil

	f.Tick(500 * time.Millisecond)

	var order []string
	for _, e := range view.events {
		order = append(order, e.id)
	}
	assert.Equal(t, []string{"C", "A", "B"}, order)
}

func TestTickToleratesDestroyDuringIteration(t *testing.T) {
	f, view, _ := newTestFleet(t)
	for _, id := range []string{"A", "B", "C"} {
		_, err := f.Create(id, nil, Options{State: Running})
		require.NoError(t, err)
	}
	view.onUpdate = func(id string) {
		if id == "A" {
			f.Destroy("B")
		}
	}
	view.events = nil

	require.NotPanics(t, func() { f.Tick(time.Second) })

	assert.Equal(t, 1, view.count("updated", "A"))
	assert.Equal(t, 0, view.count("updated", "B"))
	assert.Equal(t, 1, view.count("updated", "C"))
	assert.Equal(t, []string{"A", "C"}, f.IDs())
}

func TestSnapshotListsLiveShips(t *testing.T) {
	f, _, _ := newTestFleet(t)
	_, _ = f.Create("A", nil, Options{})
	_, _ = f.Create("B", nil, Options{Energy: 30})

	snap := f.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "A", snap[0].ID)
	assert.Equal(t, 30.0, snap[1].Energy)
}
