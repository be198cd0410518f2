// Package config loads the façade configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all eemcp configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Auth     AuthConfig     `yaml:"auth"`
	Backend  BackendConfig  `yaml:"backend"`
	Resolver ResolverConfig `yaml:"resolver"`
	Store    StoreConfig    `yaml:"store"`
	Export   ExportConfig   `yaml:"export"`
	Degrade  DegradeConfig  `yaml:"degrade"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AuthConfig configures backend credentials.
type AuthConfig struct {
	// KeyFile is the service-account JSON key path.
	KeyFile string `yaml:"key_file"`

	// Project is the cloud project computations run under.
	Project string `yaml:"project"`
}

// BackendConfig configures the Earth Engine REST client.
type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	HTTPTimeout string `yaml:"http_timeout"`
}

// ResolverConfig configures place-name resolution.
type ResolverConfig struct {
	// BufferMeters is the half-width of the box built around bare point
	// coordinates.
	BufferMeters float64 `yaml:"buffer_meters"`
}

// StoreConfig configures the artifact store.
type StoreConfig struct {
	// MaxEntries caps the store; 0 keeps the legacy unbounded behavior.
	MaxEntries int `yaml:"max_entries"`
}

// ExportConfig carries batch export defaults.
type ExportConfig struct {
	Folder       string  `yaml:"folder"`
	ScaleMeters  float64 `yaml:"scale_meters"`
	CRS          string  `yaml:"crs"`
	MaxPixels    int64   `yaml:"max_pixels"`
	FileFormat   string  `yaml:"file_format"`
	JournalPath  string  `yaml:"journal_path"`
	PollInterval string  `yaml:"poll_interval"`
}

// DegradeConfig configures the visualization retry ladder.
type DegradeConfig struct {
	// Rungs overrides the default ladder when non-empty.
	Rungs []RungConfig `yaml:"rungs"`
}

// RungConfig is one declarative ladder entry.
type RungConfig struct {
	MaxDimensions int    `yaml:"max_dimensions"`
	RegionForm    string `yaml:"region_form"` // exact | boundingBox
	Budget        string `yaml:"budget"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration. Export defaults mirror
// the standing Drive export setup: 10 m Sentinel scale, EPSG:4326,
// cloud-optimized GeoTIFFs into the EarthEngine_Exports folder.
func DefaultConfig() *Config {
	return &Config{
		Name:    "eemcp",
		Version: "1.2.0",

		Backend: BackendConfig{
			HTTPTimeout: "60s",
		},
		Resolver: ResolverConfig{
			BufferMeters: 10000,
		},
		Export: ExportConfig{
			Folder:       "EarthEngine_Exports",
			ScaleMeters:  10,
			CRS:          "EPSG:4326",
			MaxPixels:    1e10,
			FileFormat:   "GeoTIFF",
			JournalPath:  "data/export_tasks.db",
			PollInterval: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML config file, applies defaults for unset fields and
// environment overrides on top. An empty path returns defaults plus
// overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EEMCP_KEY_FILE"); v != "" {
		c.Auth.KeyFile = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Auth.KeyFile == "" {
		c.Auth.KeyFile = v
	}
	if v := os.Getenv("EEMCP_PROJECT"); v != "" {
		c.Auth.Project = v
	}
	if v := os.Getenv("EEMCP_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("EEMCP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EEMCP_STORE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.MaxEntries = n
		}
	}
	if v := os.Getenv("EEMCP_EXPORT_FOLDER"); v != "" {
		c.Export.Folder = v
	}
}

func (c *Config) validate() error {
	if _, err := c.HTTPTimeout(); err != nil {
		return err
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if c.Store.MaxEntries < 0 {
		return fmt.Errorf("store.max_entries must not be negative")
	}
	return nil
}

// HTTPTimeout parses the backend HTTP timeout.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Backend.HTTPTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid backend.http_timeout: %w", err)
	}
	return d, nil
}

// PollInterval parses the export journal poll interval.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Export.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid export.poll_interval: %w", err)
	}
	return d, nil
}
