// Package config handles cellbridge.toml (or cellbridge.yaml) configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"

	"github.com/chazu/cellbridge/convert"
	"github.com/chazu/cellbridge/native"
	"github.com/chazu/cellbridge/vm"
)

// File names searched for, in order.
var FileNames = []string{"cellbridge.toml", "cellbridge.yaml", "cellbridge.yml"}

// Config is the bridge configuration.
type Config struct {
	Encoding Encoding `toml:"encoding" yaml:"encoding"`
	Sandbox  Sandbox  `toml:"sandbox" yaml:"sandbox"`
	Natives  Natives  `toml:"natives" yaml:"natives"`
	Events   Events   `toml:"events" yaml:"events"`
	Trace    Trace    `toml:"trace" yaml:"trace"`
	Log      Log      `toml:"log" yaml:"log"`
	Script   Script   `toml:"script" yaml:"script"`

	// Dir is the directory containing the configuration file (set at load time).
	Dir string `toml:"-" yaml:"-"`
}

// Encoding selects the code page strings are transcoded to.
type Encoding struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Target  string `toml:"target" yaml:"target"`
}

// Sandbox sizes the scratch machines used for native calls.
type Sandbox struct {
	Size int `toml:"size" yaml:"size"`
}

// Natives tunes argument conversion and result translation.
type Natives struct {
	StringBufferSize int      `toml:"string_buffer_size" yaml:"string_buffer_size"`
	FloatReturn      []string `toml:"float_return" yaml:"float_return"`
}

// Events controls delivery of machine events to scripts.
type Events struct {
	Skip     []string `toml:"skip" yaml:"skip"`
	Inverted []string `toml:"inverted" yaml:"inverted"`
}

// Trace configures the native call journal.
type Trace struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	Path      string `toml:"path" yaml:"path"`
}

// Script names the entry script.
type Script struct {
	Main string `toml:"main" yaml:"main"`
}

// Default event lists.
var (
	DefaultSkipEvents     = []string{"OnGameModeInit"}
	DefaultInvertedEvents = []string{"OnPlayerCommandText"}
)

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Sandbox.Size <= 0 {
		c.Sandbox.Size = vm.DefaultSandboxSize
	}
	if c.Natives.StringBufferSize <= 0 {
		c.Natives.StringBufferSize = convert.DefaultStringBufferSize
	}
	if c.Natives.FloatReturn == nil {
		c.Natives.FloatReturn = append([]string(nil), native.DefaultFloatReturn...)
	}
	if c.Events.Skip == nil {
		c.Events.Skip = append([]string(nil), DefaultSkipEvents...)
	}
	if c.Events.Inverted == nil {
		c.Events.Inverted = append([]string(nil), DefaultInvertedEvents...)
	}
	if c.Trace.Enabled && c.Trace.Path == "" {
		c.Trace.Path = filepath.Join(".cellbridge", "trace.db")
	}
	if c.Script.Main == "" {
		c.Script.Main = "main.lua"
	}
}

// LoadFile parses the configuration file at path. The format follows the
// file extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		err = toml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c.applyDefaults()
	return &c, nil
}

// Load parses the configuration file in dir.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("no configuration file in %s", dir)
}

// FindAndLoad walks up from startDir to find a configuration file, then
// loads it. Returns nil if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range FileNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return Load(dir)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Resolve returns p relative to the configuration directory unless it is
// already absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// TracePath returns the absolute trace database path.
func (c *Config) TracePath() string {
	return c.Resolve(c.Trace.Path)
}

// MainScript returns the absolute path of the entry script.
func (c *Config) MainScript() string {
	return c.Resolve(c.Script.Main)
}
