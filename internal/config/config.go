// Package config loads the simulator configuration from YAML or TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
)

// Format selects the decoder used by Decode.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

type Config struct {
	Simulation SimulationConfig `yaml:"simulation" toml:"simulation"`
	Mediums    []MediumConfig   `yaml:"mediums" toml:"mediums"`
	Fleet      []ShipConfig     `yaml:"fleet" toml:"fleet"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

type SimulationConfig struct {
	CentralBodyRadius float64       `yaml:"central_body_radius" toml:"central_body_radius"`
	TickRate          time.Duration `yaml:"tick_rate" toml:"tick_rate"`
	Defaults          ShipOptions   `yaml:"defaults" toml:"defaults"`
}

// ShipOptions mirrors fleet.Options. Zero values fall back to the defaults.
type ShipOptions struct {
	Speed    float64    `yaml:"speed,omitempty" toml:"speed,omitempty"`
	Energy   float64    `yaml:"energy,omitempty" toml:"energy,omitempty"`
	Height   float64    `yaml:"height,omitempty" toml:"height,omitempty"`
	State    string     `yaml:"state,omitempty" toml:"state,omitempty"`
	Consume  RateConfig `yaml:"energy_consume,omitempty" toml:"energy_consume,omitempty"`
	Recharge RateConfig `yaml:"energy_recharge,omitempty" toml:"energy_recharge,omitempty"`
}

// RateConfig is either a fixed amount per frame, a Lua expression over
// ship and dt, or a Lua script defining rate(ship, dt). At most one is set.
type RateConfig struct {
	Fixed  *float64 `yaml:"fixed,omitempty" toml:"fixed,omitempty"`
	Expr   string   `yaml:"expr,omitempty" toml:"expr,omitempty"`
	Script string   `yaml:"script,omitempty" toml:"script,omitempty"`
}

// IsZero reports whether no rate is configured.
func (r RateConfig) IsZero() bool {
	return r.Fixed == nil && r.Expr == "" && r.Script == ""
}

type MediumConfig struct {
	Name   string   `yaml:"name" toml:"name"`
	Events []string `yaml:"events" toml:"events"`
}

type BindingConfig struct {
	Medium string   `yaml:"medium" toml:"medium"`
	Events []string `yaml:"events" toml:"events"`
}

type ShipConfig struct {
	ID       string          `yaml:"id" toml:"id"`
	Bindings []BindingConfig `yaml:"bindings" toml:"bindings"`
	Options  ShipOptions     `yaml:"options" toml:"options"`
}

type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr" toml:"listen_addr"`
	BroadcastHz  int           `yaml:"broadcast_hz" toml:"broadcast_hz"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Default returns the stock configuration: the two original mediums, no
// initial ships, 60 frames per second. Rates are left unset so the fleet's
// own defaults apply.
func Default() *Config {
	defaults := fleet.DefaultShipDefaults()
	return &Config{
		Simulation: SimulationConfig{
			CentralBodyRadius: fleet.DefaultConfig().CentralBodyRadius,
			TickRate:          time.Second / 60,
			Defaults: ShipOptions{
				Speed:    defaults.Speed,
				Energy:   defaults.Energy,
				Height:   defaults.Height,
				State:    string(defaults.State),
			},
		},
		Mediums: []MediumConfig{
			{Name: "mediator", Events: []string{"command"}},
			{Name: "bus", Events: []string{"command", "broadcast"}},
		},
		Server: ServerConfig{
			ListenAddr:   "127.0.0.1:8080",
			BroadcastHz:  10,
			WriteTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path, picking the decoder from its extension (.yaml, .yml or
// .toml), and validates the result.
func Load(path string) (*Config, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".toml":
		format = FormatTOML
	default:
		return nil, fmt.Errorf("config %s: unsupported extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a config in the given format over the defaults and validates it.
func Decode(r io.Reader, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys: %v", undecoded)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise only fail at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.CentralBodyRadius < 0 {
		errs = append(errs, errors.New("simulation.central_body_radius must not be negative"))
	}
	if c.Simulation.TickRate <= 0 {
		errs = append(errs, errors.New("simulation.tick_rate must be positive"))
	}
	if err := c.Simulation.Defaults.validate("simulation.defaults"); err != nil {
		errs = append(errs, err)
	}
	if c.Simulation.Defaults.Height+c.Simulation.CentralBodyRadius <= 0 {
		errs = append(errs, errors.New("orbital radius must be positive"))
	}

	mediums := make(map[string]bool, len(c.Mediums))
	for i, m := range c.Mediums {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("mediums[%d]: name is required", i))
			continue
		}
		if mediums[m.Name] {
			errs = append(errs, fmt.Errorf("mediums[%d]: duplicate medium %q", i, m.Name))
		}
		mediums[m.Name] = true
	}

	if len(c.Fleet) > fleet.MaxShips {
		errs = append(errs, fmt.Errorf("fleet: %d ships configured, at most %d allowed", len(c.Fleet), fleet.MaxShips))
	}
	ids := make(map[string]bool, len(c.Fleet))
	for i, s := range c.Fleet {
		prefix := fmt.Sprintf("fleet[%d]", i)
		if ids[s.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate ship id %q", prefix, s.ID))
		}
		ids[s.ID] = true
		for j, b := range s.Bindings {
			if !mediums[b.Medium] {
				errs = append(errs, fmt.Errorf("%s.bindings[%d]: unknown medium %q", prefix, j, b.Medium))
			}
		}
		if err := s.Options.validate(prefix + ".options"); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Server.BroadcastHz < 0 {
		errs = append(errs, errors.New("server.broadcast_hz must not be negative"))
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	return errors.Join(errs...)
}

func (o ShipOptions) validate(prefix string) error {
	var errs []error
	if _, err := fleet.ParseState(o.State); err != nil {
		errs = append(errs, fmt.Errorf("%s.state: %w", prefix, err))
	}
	if o.Energy < 0 || o.Energy > 100 {
		errs = append(errs, fmt.Errorf("%s.energy: %v outside [0, 100]", prefix, o.Energy))
	}
	for name, r := range map[string]RateConfig{"energy_consume": o.Consume, "energy_recharge": o.Recharge} {
		set := 0
		if r.Fixed != nil {
			set++
		}
		if r.Expr != "" {
			set++
		}
		if r.Script != "" {
			set++
		}
		if set > 1 {
			errs = append(errs, fmt.Errorf("%s.%s: set only one of fixed, expr, script", prefix, name))
		}
	}
	return errors.Join(errs...)
}
