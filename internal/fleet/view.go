package fleet

import "github.com/zeusync/orbitfleet/internal/core/observability/log"

// ViewSink receives the visual side effects of the simulation. The core only
// calls it; renderers, metrics and network broadcasters implement it.
type ViewSink interface {
	OnShipCreated(id string, energyPercent float64)
	OnShipDestroyed(id string)
	OnShipUpdated(id string, rotationDegrees, energyPercent float64)
}

// NopView ignores every notification.
type NopView struct{}

func (NopView) OnShipCreated(string, float64)          {}
func (NopView) OnShipDestroyed(string)                 {}
func (NopView) OnShipUpdated(string, float64, float64) {}

// MultiView fans notifications out to several sinks in order.
type MultiView []ViewSink

func (m MultiView) OnShipCreated(id string, energyPercent float64) {
	for _, v := range m {
		v.OnShipCreated(id, energyPercent)
	}
}

func (m MultiView) OnShipDestroyed(id string) {
	for _, v := range m {
		v.OnShipDestroyed(id)
	}
}

func (m MultiView) OnShipUpdated(id string, rotationDegrees, energyPercent float64) {
	for _, v := range m {
		v.OnShipUpdated(id, rotationDegrees, energyPercent)
	}
}

// LogView writes notifications to a logger. Updates are logged at debug
// level since they arrive every frame.
type LogView struct {
	Logger log.Log
}

func (v LogView) OnShipCreated(id string, energyPercent float64) {
	v.Logger.Info("ship shown", log.String("ship", id), log.String("energy", FormatEnergy(energyPercent)))
}

func (v LogView) OnShipDestroyed(id string) {
	v.Logger.Info("ship hidden", log.String("ship", id))
}

func (v LogView) OnShipUpdated(id string, rotationDegrees, energyPercent float64) {
	v.Logger.Debug("ship moved",
		log.String("ship", id),
		log.Float64("rotation", rotationDegrees),
		log.String("energy", FormatEnergy(energyPercent)),
	)
}
