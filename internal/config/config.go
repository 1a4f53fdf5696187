// Package config loads prr's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metcalfc/prr/internal/layout"
	"github.com/metcalfc/prr/internal/playback"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Viewport struct {
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	LineHeight float64 `yaml:"line_height"`
	FontSize   float64 `yaml:"font_size"`
}

// Layout converts the pixel viewport into a layout.Viewport.
func (v Viewport) Layout() layout.Viewport {
	return layout.Viewport{Width: v.Width, Height: v.Height, LineHeight: v.LineHeight}
}

type Terminal struct {
	Columns int `yaml:"columns"`
	Rows    int `yaml:"rows"`
}

// Layout returns a viewport measured in cells, one row per line.
func (t Terminal) Layout() layout.Viewport {
	return layout.Viewport{Width: float64(t.Columns), Height: float64(t.Rows), LineHeight: 1}
}

type Playback struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

type Server struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Viewport Viewport `yaml:"viewport"`
	Terminal Terminal `yaml:"terminal"`
	Playback Playback `yaml:"playback"`
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Viewport: Viewport{Width: 636, Height: 676, LineHeight: 26, FontSize: 18},
		Terminal: Terminal{Columns: 72, Rows: 20},
		Playback: Playback{TickInterval: playback.DefaultInterval},
		Server:   Server{Addr: ":3000", MaxUploadBytes: 32 << 20},
		Log:      Log{Level: "info"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/prr/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "prr", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "prr", "config.yaml")
}

// Load reads path over the defaults. An empty path means DefaultPath,
// which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var levels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if err := c.Viewport.Layout().Validate(); err != nil {
		return fmt.Errorf("%w: viewport: %w", ErrInvalid, err)
	}
	if c.Viewport.FontSize <= 0 {
		return fmt.Errorf("%w: viewport.font_size must be positive", ErrInvalid)
	}
	if err := c.Terminal.Layout().Validate(); err != nil {
		return fmt.Errorf("%w: terminal: %w", ErrInvalid, err)
	}
	if d := c.Playback.TickInterval; d < playback.MinInterval || d > playback.MaxInterval {
		return fmt.Errorf("%w: playback.tick_interval %s outside [%s, %s]",
			ErrInvalid, d, playback.MinInterval, playback.MaxInterval)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: server.max_upload_bytes must be positive", ErrInvalid)
	}
	if !levels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}
