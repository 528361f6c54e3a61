package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/fwiesel/pip-accel/internal/state"
)

// Provider resolves named settings with a fixed precedence: an explicit
// property from the configuration file wins, then the environment variable,
// then the caller-supplied default.
type Provider struct {
	settings  map[string]string
	lookupEnv func(string) (string, bool)
}

// New builds a provider over an explicit settings map. Environment lookups
// use the process environment.
func New(settings map[string]string) *Provider {
	return NewWithEnv(settings, os.LookupEnv)
}

// NewWithEnv is New with a replaceable environment lookup.
func NewWithEnv(settings map[string]string, lookupEnv func(string) (string, bool)) *Provider {
	if settings == nil {
		settings = map[string]string{}
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Provider{settings: settings, lookupEnv: lookupEnv}
}

// Load reads a flat TOML file of string settings. A missing file is not an
// error: every setting then resolves from the environment or its default.
func Load(path string) (*Provider, error) {
	settings := map[string]string{}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return New(settings), nil
		}
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &settings); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	return New(settings), nil
}

// Get resolves a setting, falling back to defaultValue when neither the
// configuration file nor the environment provides it. An empty envVar skips
// the environment tier.
func (p *Provider) Get(property, envVar, defaultValue string) string {
	if value, ok := p.Lookup(property, envVar); ok {
		return value
	}
	return defaultValue
}

// Lookup resolves a setting without a default, reporting whether any tier
// provided a value. A property explicitly set to the empty string counts as
// provided.
func (p *Provider) Lookup(property, envVar string) (string, bool) {
	if value, ok := p.settings[property]; ok {
		return value, true
	}
	if envVar != "" {
		if value, ok := p.lookupEnv(envVar); ok {
			return value, true
		}
	}
	return "", false
}

// BinaryCacheDir is the local directory holding cached distribution
// archives.
func (p *Provider) BinaryCacheDir() (string, error) {
	if dir, ok := p.Lookup("binary_cache_dir", "PIP_ACCEL_CACHE"); ok && dir != "" {
		return dir, nil
	}
	return state.BinaryCacheDir()
}
