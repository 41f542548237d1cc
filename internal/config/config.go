// Package config loads scoreboard settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
	"github.com/jaminalder/tennis-scoreboard/internal/store"
)

// Config is the full set of scoreboard settings.
type Config struct {
	// BestOf is the number of sets in a match.
	BestOf int `yaml:"best_of"`

	Names   NamesConfig   `yaml:"names"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`

	// Bindings maps key names (UP, DOWN, S, ...) to event names. Entries
	// are merged over the built-in bindings; an empty value unbinds a key.
	Bindings map[string]string `yaml:"bindings,omitempty"`
}

type NamesConfig struct {
	Home string `yaml:"home"`
	Away string `yaml:"away"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "file" | "sqlite" | "memory"
	Path   string `yaml:"path"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		BestOf: domain.DefaultSetsTarget,
		Names:  NamesConfig{Home: domain.DefaultNames.Home, Away: domain.DefaultNames.Away},
		Storage: StorageConfig{
			Driver: store.DriverFile,
			Path:   defaultMatchDir(),
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

func defaultMatchDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "matches"
	}
	return filepath.Join(home, "matches")
}

// Load reads path over the defaults. A missing file is not an error when
// path is empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Names.Home = norm.NFC.String(strings.TrimSpace(c.Names.Home))
	c.Names.Away = norm.NFC.String(strings.TrimSpace(c.Names.Away))
	if c.Names.Home == "" {
		c.Names.Home = domain.DefaultNames.Home
	}
	if c.Names.Away == "" {
		c.Names.Away = domain.DefaultNames.Away
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if strings.HasPrefix(c.Storage.Path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.Storage.Path = filepath.Join(home, c.Storage.Path[2:])
		}
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if c.BestOf <= 0 {
		return fmt.Errorf("config: best_of must be positive, got %d", c.BestOf)
	}
	switch c.Storage.Driver {
	case store.DriverFile, store.DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for driver %q", c.Storage.Driver)
		}
	case store.DriverMemory:
	default:
		return fmt.Errorf("config: %w: %q", store.ErrUnknownDriver, c.Storage.Driver)
	}
	return nil
}

// SideNames returns the configured labels.
func (c Config) SideNames() domain.Names {
	return domain.Names{Home: c.Names.Home, Away: c.Names.Away}
}

// OpenStore opens the configured storage backend.
func (c Config) OpenStore() (store.Store, error) {
	return store.Open(c.Storage.Driver, c.Storage.Path)
}
