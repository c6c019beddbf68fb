package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zeusync/orbitfleet/internal/config"
	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a .yaml or .toml config file")
	listen := flag.String("listen", "", "override server.listen_addr")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Println("Error loading config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, cleanup, err := injector.InitializeApp(cfg, reg)
	if err != nil {
		fmt.Println("Error starting simulator:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a.Logger.Info("Simulator starting",
		log.String("listen_addr", cfg.Server.ListenAddr),
		log.Duration("tick_rate", cfg.Simulation.TickRate),
		log.Strings("ships", a.Fleet.IDs()),
	)
	err = a.Run(ctx)
	stop()
	if err != nil {
		a.Logger.Error("Simulator stopped", log.Error(err))
	}
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}
