package fleet

import (
	"fmt"
	"math"
	"time"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
)

// State is the run state of a ship. The zero value means "not set" in
// Options. Destroyed is terminal and is never accepted as an option.
type State string

const (
	Stopped   State = "stop"
	Running   State = "run"
	Destroyed State = "destroyed"
)

// ParseState accepts the config spellings of a run state.
func ParseState(s string) (State, error) {
	switch s {
	case "":
		return "", nil
	case "stop", "stopped":
		return Stopped, nil
	case "run", "running":
		return Running, nil
	default:
		return "", fmt.Errorf("unknown ship state %q", s)
	}
}

const maxEnergy = 100

// Position places a ship on its orbit. Rotation is in degrees and is never
// wrapped to [0, 360).
type Position struct {
	Height   float64
	Rotation float64
}

// ShipState is a read-only copy of a ship's simulation state.
type ShipState struct {
	ID       string
	Position Position
	Speed    float64
	Energy   float64
	State    State
}

// Ship is one orbiting entity. Ships are created through Fleet.Create and
// must only be touched from the goroutine that drives the fleet.
type Ship struct {
	id       string
	fleet    *Fleet
	position Position
	speed    float64
	energy   float64
	state    State
	consume  Rate
	recharge Rate
	subs     []Subscription
}

func newShip(f *Fleet, id string, opts Options) *Ship {
	d := f.config.Defaults
	s := &Ship{
		id:       id,
		fleet:    f,
		position: Position{Height: d.Height},
		speed:    d.Speed,
		energy:   d.Energy,
		state:    d.State,
		consume:  d.Consume,
		recharge: d.Recharge,
	}
	if opts.Height != 0 {
		s.position.Height = opts.Height
	}
	if opts.Speed != 0 {
		s.speed = opts.Speed
	}
	if opts.Energy != 0 {
		s.energy = opts.Energy
	}
	if opts.State != "" {
		s.state = opts.State
	}
	if opts.Consume != nil {
		s.consume = opts.Consume
	}
	if opts.Recharge != nil {
		s.recharge = opts.Recharge
	}
	if s.state == "" {
		s.state = Stopped
	}
	s.energy = clampEnergy(s.energy)
	return s
}

func (s *Ship) ID() string         { return s.id }
func (s *Ship) State() State       { return s.state }
func (s *Ship) Energy() float64    { return s.energy }
func (s *Ship) Speed() float64     { return s.speed }
func (s *Ship) Position() Position { return s.position }

// Snapshot returns a copy of the ship's current state.
func (s *Ship) Snapshot() ShipState {
	return ShipState{
		ID:       s.id,
		Position: s.position,
		Speed:    s.speed,
		Energy:   s.energy,
		State:    s.state,
	}
}

// Stop halts the ship. It keeps recharging.
func (s *Ship) Stop() {
	if s.state == Destroyed {
		return
	}
	s.state = Stopped
}

// Run lets the ship move on the next frames while it has energy.
func (s *Ship) Run() {
	if s.state == Destroyed {
		return
	}
	s.state = Running
}

// Destroy removes the ship from the fleet and from every medium it listens
// to. Later calls do nothing.
func (s *Ship) Destroy() {
	if s.state == Destroyed {
		return
	}
	s.state = Destroyed
	s.unbind()
	s.fleet.view.OnShipDestroyed(s.id)
	s.fleet.unregister(s)
	s.fleet.logger.Info("ship destroyed", log.String("ship", s.id), log.Int("ships", s.fleet.Count()))
}

// Receive handles a message from a medium. Messages for other ships and
// unknown commands are ignored.
func (s *Ship) Receive(msg Message) {
	if msg.TargetID != s.id || s.state == Destroyed {
		return
	}
	switch msg.Command {
	case CommandStop:
		s.Stop()
	case CommandRun:
		s.Run()
	case CommandDestroy:
		s.Destroy()
	default:
		s.fleet.logger.Debug("ignoring unknown command",
			log.String("ship", s.id),
			log.String("command", string(msg.Command)),
		)
	}
}

// Advance moves the simulation of this ship forward by one frame of length dt.
func (s *Ship) Advance(dt time.Duration) {
	if s.state == Destroyed {
		return
	}
	if dt < 0 {
		dt = 0
	}
	seconds := dt.Seconds()

	if s.state == Running && s.energy > 0 {
		r := s.fleet.config.CentralBodyRadius + s.position.Height
		delta := s.speed * seconds * 180 / (math.Pi * r)

		consume := evalRate(s.consume, s.Snapshot(), seconds)
		if s.energy < consume {
			// travel only as far as the remaining energy allows
			delta = s.energy * delta / consume
			s.energy = 0
			s.Stop()
			s.fleet.logger.Info("ship out of energy", log.String("ship", s.id))
		} else {
			s.energy = clampEnergy(roundTo(s.energy-consume, 2))
		}

		s.position.Rotation = roundTo(s.position.Rotation+delta, 3)
	}

	if s.energy < maxEnergy {
		recharge := evalRate(s.recharge, s.Snapshot(), seconds)
		s.energy = clampEnergy(roundTo(s.energy+recharge, 2))
	}

	s.fleet.view.OnShipUpdated(s.id, s.position.Rotation, s.energy)
}

// FormatEnergy renders an energy value the way the ship list displays it.
func FormatEnergy(energy float64) string {
	return fmt.Sprintf("%.2f%%", energy)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func clampEnergy(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > maxEnergy:
		return maxEnergy
	default:
		return v
	}
}
