package fleet

import (
	"fmt"
	"slices"
	"time"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
)

// MaxShips is the largest number of ships alive at once.
const MaxShips = 4

// ShipDefaults fill in every option a caller leaves unset.
type ShipDefaults struct {
	Speed    float64
	Energy   float64
	Height   float64
	State    State
	Consume  Rate
	Recharge Rate
}

// DefaultShipDefaults returns the stock ship: speed 40, full energy, 100 above
// the surface, stopped, consuming 0.2 and recharging 0.1 per frame.
func DefaultShipDefaults() ShipDefaults {
	return ShipDefaults{
		Speed:    40,
		Energy:   100,
		Height:   100,
		State:    Stopped,
		Consume:  FixedRate(0.2),
		Recharge: FixedRate(0.1),
	}
}

// Config holds fleet-wide simulation parameters.
type Config struct {
	CentralBodyRadius float64
	Defaults          ShipDefaults
}

// DefaultConfig returns a config with a central body of radius 100.
func DefaultConfig() Config {
	return Config{
		CentralBodyRadius: 100,
		Defaults:          DefaultShipDefaults(),
	}
}

// Options override ShipDefaults for one ship. Zero values and nil rates mean
// "use the default".
type Options struct {
	Speed    float64
	Energy   float64
	Height   float64
	State    State
	Consume  Rate
	Recharge Rate
}

// Fleet is the catalog of live ships and the frame stepper. It is not safe
// for concurrent use; one goroutine owns it (see sim.Loop).
type Fleet struct {
	config Config
	logger log.Log
	view   ViewSink

	ships map[string]*Ship
	order []*Ship
}

// New creates an empty fleet. A nil logger or view is replaced by a no-op.
func New(config Config, logger log.Log, view ViewSink) *Fleet {
	if logger == nil {
		logger = log.NewNop()
	}
	if view == nil {
		view = NopView{}
	}
	if config.Defaults.State == "" {
		config.Defaults.State = Stopped
	}
	return &Fleet{
		config: config,
		logger: logger,
		view:   view,
		ships:  make(map[string]*Ship, MaxShips),
		order:  make([]*Ship, 0, MaxShips),
	}
}

// Config returns the fleet configuration.
func (f *Fleet) Config() Config { return f.config }

// Create builds a ship, binds it to its mediums and registers it. Every
// check runs before any subscription is made, so a failed Create leaves the
// fleet and the mediums untouched.
func (f *Fleet) Create(id string, bindings []Binding, opts Options) (*Ship, error) {
	if _, exists := f.ships[id]; exists {
		return nil, fmt.Errorf("create ship %q: %w", id, ErrDuplicateID)
	}
	if len(f.ships) >= MaxShips {
		return nil, fmt.Errorf("create ship %q: %w (max %d)", id, ErrCapacityExceeded, MaxShips)
	}
	if err := validateBindings(bindings); err != nil {
		return nil, fmt.Errorf("create ship %q: %w", id, err)
	}

	s := newShip(f, id, opts)
	if err := s.bind(bindings); err != nil {
		s.unbind()
		return nil, fmt.Errorf("create ship %q: %w", id, err)
	}

	f.view.OnShipCreated(id, s.energy)
	f.ships[id] = s
	f.order = append(f.order, s)

	f.logger.Info("ship created",
		log.String("ship", id),
		log.Float64("speed", s.speed),
		log.Float64("energy", s.energy),
		log.String("state", string(s.state)),
		log.Int("ships", len(f.ships)),
	)
	return s, nil
}

// Remove detaches the ship with the given id from the fleet and its mediums
// and notifies the view once. It reports whether a ship was removed.
func (f *Fleet) Remove(id string) bool {
	s, ok := f.ships[id]
	if !ok {
		return false
	}
	s.Destroy()
	return true
}

func (f *Fleet) unregister(s *Ship) {
	if cur, ok := f.ships[s.id]; !ok || cur != s {
		return
	}
	delete(f.ships, s.id)
	f.order = slices.DeleteFunc(f.order, func(o *Ship) bool { return o == s })
}

// Destroy destroys the ship with the given id, if present. It is Remove
// under the name the command uses.
func (f *Fleet) Destroy(id string) bool {
	return f.Remove(id)
}

// Lookup returns the live ship with the given id.
func (f *Fleet) Lookup(id string) (*Ship, bool) {
	s, ok := f.ships[id]
	return s, ok
}

// Count returns the number of live ships.
func (f *Fleet) Count() int { return len(f.ships) }

// IDs returns the live ship ids in registration order.
func (f *Fleet) IDs() []string {
	ids := make([]string, len(f.order))
	for i, s := range f.order {
		ids[i] = s.id
	}
	return ids
}

// Snapshot returns the state of every live ship in registration order.
func (f *Fleet) Snapshot() []ShipState {
	out := make([]ShipState, len(f.order))
	for i, s := range f.order {
		out[i] = s.Snapshot()
	}
	return out
}

// Dispatch hands a message to the addressed ship. Unknown ids are ignored.
func (f *Fleet) Dispatch(msg Message) {
	if s, ok := f.ships[msg.TargetID]; ok {
		s.Receive(msg)
	}
}

// Tick advances every ship registered when the call starts by the same
// elapsed time. Ships destroyed during the tick are skipped.
func (f *Fleet) Tick(elapsed time.Duration) {
	ships := slices.Clone(f.order)
	for _, s := range ships {
		if s.state == Destroyed {
			continue
		}
		s.Advance(elapsed)
	}
}
