package fleet

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectedDelta(f *Fleet, s *Ship, dt float64) float64 {
	r := f.Config().CentralBodyRadius + s.Position().Height
	return s.Speed() * dt * 180 / (math.Pi * r)
}

func TestAdvanceOneSecondExample(t *testing.T) {
	f, view, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{Speed: 40, Energy: 100, Consume: FixedRate(0.2), Recharge: FixedRate(0.1)})
	require.NoError(t, err)

	s.Run()
	want := roundTo(expectedDelta(f, s, 1), 3)
	f.Tick(1000 * time.Millisecond)

	// 100 - 0.2 consumed, then 0.1 recharged in the same frame
	assert.Equal(t, 99.9, s.Energy())
	assert.Equal(t, want, s.Position().Rotation)
	assert.InDelta(t, 11.459, s.Position().Rotation, 1e-9)

	last := view.events[len(view.events)-1]
	assert.Equal(t, viewEvent{kind: "updated", id: "A", rotation: want, energy: 99.9}, last)
}

func TestAdvanceConsumptionWithoutRecharge(t *testing.T) {
	f, _, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{Consume: FixedRate(0.2), Recharge: FixedRate(0)})
	require.NoError(t, err)

	s.Run()
	f.Tick(time.Second)
	assert.Equal(t, 99.8, s.Energy())
	assert.Equal(t, "99.80%", FormatEnergy(s.Energy()))
}

func TestStoppedShipOnlyRecharges(t *testing.T) {
	f, _, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{Energy: 50})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		f.Tick(16 * time.Millisecond)
		assert.Equal(t, 0.0, s.Position().Rotation)
	}
	assert.Equal(t, 51.0, s.Energy())
}

func TestExhaustedShipStopsWithPartialDelta(t *testing.T) {
	f, _, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{Energy: 0.5, State: Running, Consume: FixedRate(2), Recharge: FixedRate(0.1)})
	require.NoError(t, err)

	full := expectedDelta(f, s, 1)
	f.Tick(time.Second)

	assert.Equal(t, Stopped, s.State())
	assert.Less(t, s.Position().Rotation, full)
	assert.InDelta(t, roundTo(full*0.5/2, 3), s.Position().Rotation, 1e-9)
	// drained to zero, then recharged once
	assert.Equal(t, 0.1, s.Energy())

	rot := s.Position().Rotation
	f.Tick(time.Second)
	assert.Equal(t, rot, s.Position().Rotation)
}

func TestRunningShipWithoutEnergyDoesNotMove(t *testing.T) {
	f, _, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{State: Running, Consume: FixedRate(1), Recharge: FixedRate(0)})
	require.NoError(t, err)
	s.energy = 0

	f.Tick(time.Second)
	assert.Equal(t, 0.0, s.Position().Rotation)
	assert.Equal(t, Running, s.State())
}

func TestComputedRatesReceiveSeconds(t *testing.T) {
	f, _, _ := newTestFleet(t)
	var consumeDT, rechargeDT []float64
	consume := Computed(func(ship ShipState, dt float64) float64 {
		consumeDT = append(consumeDT, dt)
		return ship.Speed * dt / 100
	})
	recharge := Computed(func(ship ShipState, dt float64) float64 {
		rechargeDT = append(rechargeDT, dt)
		return 0
	})
	s, err := f.Create("A", nil, Options{State: Running, Consume: consume, Recharge: recharge})
	require.NoError(t, err)

	f.Tick(250 * time.Millisecond)
	assert.Equal(t, 99.9, s.Energy())

	s.Stop()
	f.Tick(250 * time.Millisecond)

	assert.Equal(t, []float64{0.25}, consumeDT)
	assert.Equal(t, []float64{0.25, 0.25}, rechargeDT)
}

func TestRechargeClampsAtHundred(t *testing.T) {
	f, _, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{Energy: 99.95, Recharge: FixedRate(5)})
	require.NoError(t, err)

	f.Tick(time.Second)
	assert.Equal(t, 100.0, s.Energy())
}

func TestEnergyStaysInBoundsForRandomTicks(t *testing.T) {
	f, _, _ := newTestFleet(t)
	rng := rand.New(rand.NewSource(7))
	wild := Computed(func(ShipState, float64) float64 { return rng.Float64()*40 - 10 })
	ships := make([]*Ship, 0, MaxShips)
	for _, id := range []string{"A", "B", "C", "D"} {
		s, err := f.Create(id, nil, Options{State: Running, Consume: wild, Recharge: wild})
		require.NoError(t, err)
		ships = append(ships, s)
	}

	for i := 0; i < 500; i++ {
		if i%37 == 0 {
			ships[rng.Intn(len(ships))].Run()
		}
		f.Tick(time.Duration(rng.Intn(100)) * time.Millisecond)
		for _, s := range ships {
			e := s.Energy()
			require.GreaterOrEqual(t, e, 0.0)
			require.LessOrEqual(t, e, 100.0)
		}
	}
}

func TestRotationIsNotWrapped(t *testing.T) {
	f, _, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{State: Running, Speed: 1000, Consume: FixedRate(0), Recharge: FixedRate(0)})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		f.Tick(time.Second)
	}
	assert.Greater(t, s.Position().Rotation, 360.0)
}

func TestNegativeElapsedIsTreatedAsZero(t *testing.T) {
	f, _, _ := newTestFleet(t)
	s, err := f.Create("A", nil, Options{State: Running, Recharge: FixedRate(0)})
	require.NoError(t, err)

	f.Tick(-time.Second)
	assert.Equal(t, 0.0, s.Position().Rotation)
}

func TestParseState(t *testing.T) {
	st, err := ParseState("running")
	require.NoError(t, err)
	assert.Equal(t, Running, st)

	st, err = ParseState("stop")
	require.NoError(t, err)
	assert.Equal(t, Stopped, st)

	_, err = ParseState("orbiting")
	assert.Error(t, err)

	// destroyed is terminal, never an option
	_, err = ParseState(string(Destroyed))
	assert.Error(t, err)
}
