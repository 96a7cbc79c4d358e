// Package config loads the command configuration: logging, the run and sweep
// settings, model parameter overrides, metric sinks and the report store.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/infra/monitoring"
	"github.com/kilianp07/evpolicy/infra/store"
)

// EnvPrefix marks environment overrides; nested keys are separated by a
// double underscore, e.g. K_RUN__SEED=7 or K_PARAMS__FIRM__ALPHA1=0.
const EnvPrefix = "K_"

type Config struct {
	Log     LogConfig      `json:"log"`
	Run     RunConfig      `json:"run"`
	Sweep   SweepConfig    `json:"sweep"`
	Metrics metrics.Config `json:"metrics"`
	Store   store.Config   `json:"store"`
	// Monitoring enables Sentry error reporting.
	Monitoring monitoring.Config `json:"monitoring"`
	// Params overrides the default model parameters. Keys follow the JSON
	// names of params.Params.
	Params map[string]any `json:"params"`
}

// Load reads path (YAML or JSON; empty means defaults only), applies
// environment overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = kjson.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps K_RUN__SEED=7 to ("run.seed", 7). Scalars are typed so that
// parameter overrides survive the JSON round trip in ModelParams.
func envValue(key, value string) (string, any) {
	key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return key, i
	}
	if u, err := strconv.ParseUint(value, 10, 64); err == nil {
		return key, u
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return key, f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return key, b
	}
	return key, value
}

// DefaultSeed seeds runs and sweeps that do not configure a seed. Any value,
// 0 included, is honoured once set.
const DefaultSeed = 1

// Default returns the values that keys absent from the file and environment
// keep. Fields whose zero value is meaningful are set here rather than in
// SetDefaults.
func Default() Config {
	return Config{
		Run:   RunConfig{Seed: DefaultSeed},
		Sweep: SweepConfig{Seed: DefaultSeed},
	}
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Log.SetDefaults()
	c.Run.SetDefaults()
	c.Sweep.SetDefaults()
	c.Store.SetDefaults()
}

// Validate checks every section, including the parameter overrides.
func (c Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Run.Validate(); err != nil {
		return err
	}
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if _, err := c.ModelParams(); err != nil {
		return err
	}
	return nil
}

// ModelParams returns the default parameters with the overrides applied.
func (c Config) ModelParams() (params.Params, error) {
	return params.Default().WithOverrides(c.Params)
}
