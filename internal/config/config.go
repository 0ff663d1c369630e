package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/retain/internal/errors"
)

// ConfigFileNames are the configuration files Load looks for, in order.
var ConfigFileNames = []string{"retain.json", "retain.yaml", "retain.yml"}

const (
	// DefaultTick is the default batched-update frame interval.
	DefaultTick = "16ms"

	// DefaultMirrorAddr is the default listen address of the mirror server.
	DefaultMirrorAddr = "localhost:7070"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "retain"

	// DefaultComponentsDir is the default directory scanned for templates.
	DefaultComponentsDir = "components"
)

// Config represents a retain.json or retain.yaml file.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Root is the component rendered into the mirrored root by serve.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	// Props are passed to the root component.
	Props map[string]any `json:"props,omitempty" yaml:"props,omitempty"`

	Log       LogConfig       `json:"log,omitempty" yaml:"log,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	Loader    LoaderConfig    `json:"loader,omitempty" yaml:"loader,omitempty"`
	Render    RenderConfig    `json:"render,omitempty" yaml:"render,omitempty"`
	Mirror    MirrorConfig    `json:"mirror,omitempty" yaml:"mirror,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	State     StateConfig     `json:"state,omitempty" yaml:"state,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// SchedulerConfig controls the frame scheduler of batched state updates.
type SchedulerConfig struct {
	// Tick is the frame interval (e.g., "16ms").
	Tick string `json:"tick,omitempty" yaml:"tick,omitempty"`
}

// LoaderConfig controls where component code comes from.
type LoaderConfig struct {
	// Dir is scanned for *.yaml, *.yml and *.rtpl templates. Each file
	// registers a component named after the file.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Components maps component names to sources. A source is a path
	// relative to the config file, an http(s) URL or s3://bucket/key.
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty"`

	// Timeout bounds each fetch (e.g., "10s"). Empty means no bound.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Region is the AWS region used for s3:// sources.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// RenderConfig controls the render driver.
type RenderConfig struct {
	// Progressive renders placeholders for components still loading.
	Progressive bool `json:"progressive,omitempty" yaml:"progressive,omitempty"`
}

// MirrorConfig controls the mirror server.
type MirrorConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// Origins lists allowed WebSocket origins. Empty allows all.
	Origins []string `json:"origins,omitempty" yaml:"origins,omitempty"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	// Enabled serves /metrics on the mirror server.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// StateConfig controls state persistence.
type StateConfig struct {
	// Path is the bbolt database file. Empty disables persistence.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Name is the key the root store is saved under.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory. It looks for
// retain.json, retain.yaml and retain.yml, in that order.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("C001").
		WithDetail("No retain.json or retain.yaml found in " + dir)
}

// LoadFile reads and validates configuration from the specified file path.
// The format follows the file extension; anything but .yaml and .yml is
// parsed as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C001").WithDetail("No config file at " + path)
		}
		return nil, errors.New("C002").WithDetailf("read %s: %v", path, err).Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("C002").
			WithDetailf("Failed to parse %s: %v", filepath.Base(path), err).
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML when the
// extension says so and as indented JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("C002").WithDetailf("encode config: %v", err).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("C002").WithDetailf("write %s: %v", path, err).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Scheduler.Tick == "" {
		c.Scheduler.Tick = DefaultTick
	}
	if c.Loader.Dir == "" {
		c.Loader.Dir = DefaultComponentsDir
	}
	if c.Mirror.Addr == "" {
		c.Mirror.Addr = DefaultMirrorAddr
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.State.Name == "" {
		c.State.Name = "root"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("C002").WithDetailf("log.format must be text or json, got %q", c.Log.Format)
	}
	tick, err := parseDuration("scheduler.tick", c.Scheduler.Tick)
	if err != nil {
		return err
	}
	if tick <= 0 {
		return errors.New("C002").WithDetail("scheduler.tick must be positive")
	}
	if _, err := parseDuration("loader.timeout", c.Loader.Timeout); err != nil {
		return err
	}
	for _, name := range c.ComponentNames() {
		if strings.TrimSpace(c.Loader.Components[name]) == "" {
			return errors.New("C002").WithDetailf("loader.components.%s has no source", name)
		}
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.New("C002").WithDetailf("%s: %v", field, err).Wrap(err)
	}
	if d < 0 {
		return 0, errors.New("C002").WithDetailf("%s must not be negative", field)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("C002").WithDetailf("log.level %q is not debug, info, warn or error", s)
	}
	return level, nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

// TickInterval returns the scheduler frame interval.
func (c *Config) TickInterval() time.Duration {
	d, _ := parseDuration("scheduler.tick", c.Scheduler.Tick)
	return d
}

// LoaderTimeout returns the per-fetch timeout, or zero for none.
func (c *Config) LoaderTimeout() time.Duration {
	d, _ := parseDuration("loader.timeout", c.Loader.Timeout)
	return d
}

// ComponentNames returns the names in Loader.Components, sorted.
func (c *Config) ComponentNames() []string {
	names := make([]string, 0, len(c.Loader.Components))
	for name := range c.Loader.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComponentsPath returns the absolute path to the template directory.
func (c *Config) ComponentsPath() string {
	return c.resolve(c.Loader.Dir)
}

// StatePath returns the absolute path of the state database, or "" when
// persistence is disabled.
func (c *Config) StatePath() string {
	if c.State.Path == "" {
		return ""
	}
	return c.resolve(c.State.Path)
}

// SourcePath resolves a file source relative to the config file.
func (c *Config) SourcePath(source string) string {
	return c.resolve(source)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("C001").
				WithDetail("No retain.json or retain.yaml found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'retain init' to create one")
		}
		dir = parent
	}
}
