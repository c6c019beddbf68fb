package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeusync/orbitfleet/internal/config"
	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
	"github.com/zeusync/orbitfleet/internal/medium"
	"github.com/zeusync/orbitfleet/internal/server"
	"github.com/zeusync/orbitfleet/internal/sim"
	"github.com/zeusync/orbitfleet/pkg/api"
)

var _ server.Controller = (*Commander)(nil)

var ErrUnknownMedium = errors.New("unknown medium")

// Commander applies remote requests on the simulation goroutine.
type Commander struct {
	loop    *sim.Loop
	mediums *medium.Registry
	logger  log.Log
}

func NewCommander(loop *sim.Loop, mediums *medium.Registry, logger log.Log) *Commander {
	return &Commander{loop: loop, mediums: mediums, logger: logger}
}

// Send publishes msg on the named medium.
func (c *Commander) Send(ctx context.Context, name, event string, msg fleet.Message) error {
	m, ok := c.mediums.Get(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownMedium, name)
	}
	return c.loop.Do(ctx, func() error {
		return m.Send(event, msg)
	})
}

// Create adds a ship. Remote ships only take fixed rates.
func (c *Commander) Create(ctx context.Context, req api.Request) error {
	cfgs := make([]config.BindingConfig, len(req.Bindings))
	for i, b := range req.Bindings {
		cfgs[i] = config.BindingConfig{Medium: b.Medium, Events: b.Events}
	}
	bindings, err := Bindings(c.mediums, cfgs)
	if err != nil {
		return fmt.Errorf("create ship %q: %w", req.ID, err)
	}
	opts, err := remoteOptions(req.Options)
	if err != nil {
		return fmt.Errorf("create ship %q: %w", req.ID, err)
	}
	return c.loop.Do(ctx, func() error {
		_, err := c.loop.Fleet().Create(req.ID, bindings, opts)
		return err
	})
}

func remoteOptions(o *api.ShipOptions) (fleet.Options, error) {
	if o == nil {
		return fleet.Options{}, nil
	}
	state, err := fleet.ParseState(o.State)
	if err != nil {
		return fleet.Options{}, err
	}
	opts := fleet.Options{
		Speed:  o.Speed,
		Energy: o.Energy,
		Height: o.Height,
		State:  state,
	}
	if o.Consume != nil {
		opts.Consume = fleet.FixedRate(*o.Consume)
	}
	if o.Recharge != nil {
		opts.Recharge = fleet.FixedRate(*o.Recharge)
	}
	return opts, nil
}
