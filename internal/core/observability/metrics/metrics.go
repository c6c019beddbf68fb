// Package metrics exports fleet activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/orbitfleet/internal/core/events/bus"
	"github.com/zeusync/orbitfleet/internal/fleet"
)

var (
	_ fleet.ViewSink       = (*FleetCollector)(nil)
	_ bus.EventBusObserver = (*MediumObserver)(nil)
)

// FleetCollector bundles the fleet metrics. It doubles as a fleet.ViewSink so
// it can be attached next to the real renderer with fleet.MultiView.
type FleetCollector struct {
	gatherer prometheus.Gatherer

	Ships          prometheus.Gauge
	ShipsCreated   prometheus.Counter
	ShipsDestroyed prometheus.Counter
	Ticks          prometheus.Counter
	Energy         *prometheus.GaugeVec
	Rotation       *prometheus.GaugeVec
	Deliveries     *prometheus.CounterVec
	DeliveryErrors *prometheus.CounterVec
}

// NewFleetCollector registers the fleet metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewFleetCollector(reg prometheus.Registerer) (*FleetCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &FleetCollector{gatherer: gatherer}
	var err error
	if c.Ships, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_ships",
		Help: "Number of live ships.",
	}), "fleet_ships"); err != nil {
		return nil, err
	}
	if c.ShipsCreated, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_ships_created_total",
		Help: "Ships successfully created.",
	}), "fleet_ships_created_total"); err != nil {
		return nil, err
	}
	if c.ShipsDestroyed, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_ships_destroyed_total",
		Help: "Ships destroyed.",
	}), "fleet_ships_destroyed_total"); err != nil {
		return nil, err
	}
	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_ticks_total",
		Help: "Frames stepped by the simulation loop.",
	}), "fleet_ticks_total"); err != nil {
		return nil, err
	}
	if c.Energy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_ship_energy_percent",
		Help: "Current energy of each ship.",
	}, []string{"ship"}), "fleet_ship_energy_percent"); err != nil {
		return nil, err
	}
	if c.Rotation, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_ship_rotation_degrees",
		Help: "Accumulated orbital rotation of each ship.",
	}, []string{"ship"}), "fleet_ship_rotation_degrees"); err != nil {
		return nil, err
	}
	if c.Deliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_medium_deliveries_total",
		Help: "Handler invocations per medium and event.",
	}, []string{"medium", "event"}), "fleet_medium_deliveries_total"); err != nil {
		return nil, err
	}
	if c.DeliveryErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_medium_delivery_errors_total",
		Help: "Publishes on a medium that returned an error.",
	}, []string{"medium", "event"}), "fleet_medium_delivery_errors_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes the registered metrics over HTTP.
func (c *FleetCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *FleetCollector) OnShipCreated(id string, energyPercent float64) {
	c.Ships.Inc()
	c.ShipsCreated.Inc()
	c.Energy.WithLabelValues(id).Set(energyPercent)
	c.Rotation.WithLabelValues(id).Set(0)
}

func (c *FleetCollector) OnShipDestroyed(id string) {
	c.Ships.Dec()
	c.ShipsDestroyed.Inc()
	c.Energy.DeleteLabelValues(id)
	c.Rotation.DeleteLabelValues(id)
}

func (c *FleetCollector) OnShipUpdated(id string, rotationDegrees, energyPercent float64) {
	c.Energy.WithLabelValues(id).Set(energyPercent)
	c.Rotation.WithLabelValues(id).Set(rotationDegrees)
}

// ObserveTick counts one simulation frame.
func (c *FleetCollector) ObserveTick(time.Duration) {
	c.Ticks.Inc()
}

// MediumObserver returns a bus observer labelling deliveries with medium.
func (c *FleetCollector) MediumObserver(medium string) *MediumObserver {
	return &MediumObserver{collector: c, medium: medium}
}

// MediumObserver feeds bus deliveries of one medium into the collector.
type MediumObserver struct {
	collector *FleetCollector
	medium    string
}

func (o *MediumObserver) OnDelivered(eventType string, handlers int, err error, _ time.Duration) {
	o.collector.Deliveries.WithLabelValues(o.medium, eventType).Add(float64(handlers))
	if err != nil {
		o.collector.DeliveryErrors.WithLabelValues(o.medium, eventType).Inc()
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
