// Package app assembles the simulator from its configuration and runs it.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/orbitfleet/internal/config"
	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/core/observability/metrics"
	"github.com/zeusync/orbitfleet/internal/fleet"
	"github.com/zeusync/orbitfleet/internal/medium"
	"github.com/zeusync/orbitfleet/internal/server"
	"github.com/zeusync/orbitfleet/internal/sim"
)

// App is a wired simulator.
type App struct {
	Config  *config.Config
	Logger  log.Log
	Mediums *medium.Registry
	Fleet   *fleet.Fleet
	Loop    *sim.Loop
	Metrics *metrics.FleetCollector
	Server  *server.Server
}

// New creates the ships listed in the config. The cleanup releases their
// scripted rates.
func New(
	cfg *config.Config,
	logger log.Log,
	mediums *medium.Registry,
	f *fleet.Fleet,
	loop *sim.Loop,
	collector *metrics.FleetCollector,
	srv *server.Server,
) (*App, func(), error) {
	var rates []fleet.Rate
	cleanup := func() { config.CloseRates(rates...) }

	for _, sc := range cfg.Fleet {
		bindings, err := Bindings(mediums, sc.Bindings)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ship %q: %w", sc.ID, err)
		}
		opts, err := sc.Options.Options(sc.ID, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ship %q: %w", sc.ID, err)
		}
		rates = append(rates, opts.Consume, opts.Recharge)
		if _, err := f.Create(sc.ID, bindings, opts); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Mediums: mediums,
		Fleet:   f,
		Loop:    loop,
		Metrics: collector,
		Server:  srv,
	}, cleanup, nil
}

// Run drives the loop and the server until ctx is done or either fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Loop.Run(ctx)
	})
	g.Go(func() error {
		return a.Server.Serve(ctx)
	})
	return g.Wait()
}

// Bindings resolves medium names. An unknown name is an invalid
// subscription.
func Bindings(mediums *medium.Registry, cfgs []config.BindingConfig) ([]fleet.Binding, error) {
	out := make([]fleet.Binding, 0, len(cfgs))
	for _, b := range cfgs {
		m, ok := mediums.Get(b.Medium)
		if !ok {
			return nil, fmt.Errorf("%w: unknown medium %q", fleet.ErrInvalidSubscription, b.Medium)
		}
		out = append(out, fleet.Binding{Medium: m, Events: b.Events})
	}
	return out, nil
}
