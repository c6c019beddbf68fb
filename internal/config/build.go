package config

import (
	"fmt"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
	"github.com/zeusync/orbitfleet/internal/script"
)

// Rate turns the config into a fleet.Rate. It returns nil when nothing is
// configured. Scripted rates hold a Lua VM until released with CloseRates.
func (r RateConfig) Rate(name string, logger log.Log) (fleet.Rate, error) {
	switch {
	case r.Fixed != nil:
		return fleet.FixedRate(*r.Fixed), nil
	case r.Expr != "":
		rate, err := script.Expression(name, r.Expr, logger)
		if err != nil {
			return nil, err
		}
		return rate, nil
	case r.Script != "":
		rate, err := script.Compile(name, r.Script, logger)
		if err != nil {
			return nil, err
		}
		return rate, nil
	default:
		return nil, nil
	}
}

// Options converts ship options; name prefixes script names in logs.
func (o ShipOptions) Options(name string, logger log.Log) (fleet.Options, error) {
	state, err := fleet.ParseState(o.State)
	if err != nil {
		return fleet.Options{}, err
	}
	consume, err := o.Consume.Rate(name+".energy_consume", logger)
	if err != nil {
		return fleet.Options{}, err
	}
	recharge, err := o.Recharge.Rate(name+".energy_recharge", logger)
	if err != nil {
		closeRate(consume)
		return fleet.Options{}, err
	}
	return fleet.Options{
		Speed:    o.Speed,
		Energy:   o.Energy,
		Height:   o.Height,
		State:    state,
		Consume:  consume,
		Recharge: recharge,
	}, nil
}

// FleetConfig builds the fleet configuration, filling unset defaults from
// fleet.DefaultShipDefaults.
func (s SimulationConfig) FleetConfig(logger log.Log) (fleet.Config, error) {
	opts, err := s.Defaults.Options("defaults", logger)
	if err != nil {
		return fleet.Config{}, fmt.Errorf("simulation.defaults: %w", err)
	}
	d := fleet.DefaultShipDefaults()
	if opts.Speed != 0 {
		d.Speed = opts.Speed
	}
	if opts.Energy != 0 {
		d.Energy = opts.Energy
	}
	if opts.Height != 0 {
		d.Height = opts.Height
	}
	if opts.State != "" {
		d.State = opts.State
	}
	if opts.Consume != nil {
		d.Consume = opts.Consume
	}
	if opts.Recharge != nil {
		d.Recharge = opts.Recharge
	}
	return fleet.Config{CentralBodyRadius: s.CentralBodyRadius, Defaults: d}, nil
}

// CloseRates releases the Lua VMs behind scripted rates.
func CloseRates(rates ...fleet.Rate) {
	for _, r := range rates {
		closeRate(r)
	}
}

func closeRate(r fleet.Rate) {
	if c, ok := r.(interface{ Close() }); ok {
		c.Close()
	}
}
