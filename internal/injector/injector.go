//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/orbitfleet/internal/app"
	"github.com/zeusync/orbitfleet/internal/config"
)

func InitializeApp(cfg *config.Config, reg prometheus.Registerer) (*app.App, func(), error) {
	wire.Build(app.ProviderSet)
	return nil, nil, nil
}
