package injector

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/orbitfleet/internal/config"
	"github.com/zeusync/orbitfleet/internal/fleet"
)

func TestInitializeAppFromConfig(t *testing.T) {
	cfg, err := config.Load("../config/testdata/fleet.yaml")
	require.NoError(t, err)
	cfg.Logging.Level = "error"

	reg := prometheus.NewRegistry()
	a, cleanup, err := InitializeApp(cfg, reg)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, []string{"A", "B"}, a.Fleet.IDs())
	assert.Equal(t, []string{"bus", "mediator"}, a.Mediums.Names())
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Metrics.Ships))

	a.Loop.Step(time.Second)
	b, ok := a.Fleet.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, fleet.Running, b.State())
	// expr rate: 50 * 1 / 100 consumed, then 0.05 recharged
	assert.Equal(t, 99.55, b.Energy())
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Ticks))
}

func TestInitializeAppRejectsBadLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "chatty"
	_, _, err := InitializeApp(cfg, prometheus.NewRegistry())
	assert.Error(t, err)
}
