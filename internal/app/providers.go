package app

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/orbitfleet/internal/config"
	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/core/observability/metrics"
	"github.com/zeusync/orbitfleet/internal/fleet"
	"github.com/zeusync/orbitfleet/internal/medium"
	"github.com/zeusync/orbitfleet/internal/server"
	"github.com/zeusync/orbitfleet/internal/sim"
)

// ProviderSet builds an App from a *config.Config and a prometheus.Registerer.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideCollector,
	ProvideMediums,
	ProvideFrames,
	ProvideFleet,
	ProvideLoop,
	NewCommander,
	wire.Bind(new(server.Controller), new(*Commander)),
	ProvideServer,
	New,
)

func ProvideLogger(cfg *config.Config) (log.Log, func(), error) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(level)
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideCollector(reg prometheus.Registerer) (*metrics.FleetCollector, error) {
	return metrics.NewFleetCollector(reg)
}

// ProvideMediums creates the configured mediums with delivery metrics
// attached.
func ProvideMediums(cfg *config.Config, collector *metrics.FleetCollector) *medium.Registry {
	reg := medium.NewRegistry()
	for _, mc := range cfg.Mediums {
		m := medium.New(mc.Name, mc.Events...)
		m.Observe(collector.MediumObserver(mc.Name))
		reg.Add(m)
	}
	return reg
}

func ProvideFrames(cfg *config.Config, logger log.Log) *server.FrameSink {
	return server.NewFrameSink(nil, cfg.Server.BroadcastHz, logger)
}

// ProvideFleet creates an empty fleet whose view feeds metrics, remote
// clients and the log.
func ProvideFleet(
	cfg *config.Config,
	logger log.Log,
	collector *metrics.FleetCollector,
	frames *server.FrameSink,
) (*fleet.Fleet, func(), error) {
	fc, err := cfg.Simulation.FleetConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	view := fleet.MultiView{collector, frames, fleet.LogView{Logger: logger}}
	f := fleet.New(fc, logger, view)
	return f, func() { config.CloseRates(fc.Defaults.Consume, fc.Defaults.Recharge) }, nil
}

func ProvideLoop(
	cfg *config.Config,
	f *fleet.Fleet,
	collector *metrics.FleetCollector,
	frames *server.FrameSink,
	logger log.Log,
) *sim.Loop {
	return sim.New(f, cfg.Simulation.TickRate, logger, collector.ObserveTick, frames.Flush)
}

func ProvideServer(
	cfg *config.Config,
	ctrl server.Controller,
	frames *server.FrameSink,
	collector *metrics.FleetCollector,
	logger log.Log,
) *server.Server {
	sc := server.DefaultConfig()
	sc.ListenAddr = cfg.Server.ListenAddr
	sc.BroadcastHz = cfg.Server.BroadcastHz
	if cfg.Server.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.Server.WriteTimeout
	}
	return server.New(sc, ctrl, frames, collector.Handler(), logger)
}
