// internal/config/config.go
//
// This package handles configuration and the .kmap directory structure.
// Every project that runs kmap gets a .kmap/ folder created in its root.

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
)

const (
	// KmapDir is the name of the directory we create in each project
	KmapDir = ".kmap"

	defaultFPS         = 30
	defaultColorMode   = "auto"
	defaultContainment = "clusters"
	defaultSettleMS    = 100
	defaultCols        = 100
	defaultRows        = 30
	minCols            = 20
	minRows            = 8
	maxFPS             = 120
)

const defaultProjectConfigYAML = `# kmap project configuration
version: 1

render:
  # Frames per second for the map view.
  fps: 30
  # auto | always | never
  color: auto

scene:
  # 0 seeds the entity layout from the clock.
  seed: 0
  # clusters | wrap
  containment: clusters

demo:
  sandbox: true
  settle_ms: 100
  # Optional YAML script replacing the built-in six steps.
  # script: scripts/demo.yaml

bridge:
  enabled: true
  host: 127.0.0.1
  port: 8787

headless:
  cols: 100
  rows: 30
`

// RenderConfig controls the terminal renderer.
type RenderConfig struct {
	FPS   int    `yaml:"fps"`
	Color string `yaml:"color"`
}

// SceneConfig controls entity population.
type SceneConfig struct {
	Seed        int64  `yaml:"seed"`
	Containment string `yaml:"containment"`
}

// DemoConfig controls the demo scheduler.
type DemoConfig struct {
	Sandbox  *bool  `yaml:"sandbox,omitempty"`
	SettleMS *int   `yaml:"settle_ms,omitempty"`
	Script   string `yaml:"script,omitempty"`
}

// BridgeConfig configures the HTTP phase bridge.
type BridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// HeadlessConfig sizes the virtual canvas when no terminal is attached.
type HeadlessConfig struct {
	Cols int `yaml:"cols"`
	Rows int `yaml:"rows"`
}

// ProjectConfig models .kmap/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Render   RenderConfig   `yaml:"render"`
	Scene    SceneConfig    `yaml:"scene"`
	Demo     DemoConfig     `yaml:"demo"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Headless HeadlessConfig `yaml:"headless"`
}

// Config holds the runtime configuration for kmap.
type Config struct {
	// ProjectDir is the directory where the user ran `kmap` from
	ProjectDir string

	// KmapProjectDir is ProjectDir/.kmap
	KmapProjectDir string

	Project ProjectConfig
}

// InitDir creates the .kmap directory structure in the given project
// directory and writes a default config.yaml if none exists.
//
// Structure created:
// .kmap/
// ├── config.yaml
// ├── logs/      <- kmap.log
// └── scripts/   <- optional demo scripts
func InitDir(projectDir string) error {
	kmapDir := filepath.Join(projectDir, KmapDir)
	dirs := []string{
		filepath.Join(kmapDir, "logs"),
		filepath.Join(kmapDir, "scripts"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(kmapDir, "config.yaml"))
}

// Load reads .kmap/config.yaml under projectDir. A missing file yields the
// defaults.
func Load(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:     projectDir,
		KmapProjectDir: filepath.Join(projectDir, KmapDir),
		Project:        defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration rooted at projectDir without
// touching the filesystem.
func Default(projectDir string) *Config {
	return &Config{
		ProjectDir:     projectDir,
		KmapProjectDir: filepath.Join(projectDir, KmapDir),
		Project:        defaultProjectConfig(),
	}
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.KmapProjectDir, "logs")
}

// LogPath returns the logbook file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "kmap.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.KmapProjectDir, "config.yaml")
}

// ScriptPath returns the configured demo script, or "" for the built-in one.
func (c *Config) ScriptPath() string {
	return c.Project.Demo.Script
}

// FrameInterval converts render.fps into a tick interval.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Project.Render.FPS)
}

// SettleDelay returns the pause between starting the demo and its first step.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(*c.Project.Demo.SettleMS) * time.Millisecond
}

// SandboxEnabled reports whether the demo flips the sandbox flag on start.
func (c *Config) SandboxEnabled() bool {
	return *c.Project.Demo.Sandbox
}

// ColorMode returns auto, always or never.
func (c *Config) ColorMode() string {
	return c.Project.Render.Color
}

// Containment returns clusters or wrap.
func (c *Config) Containment() string {
	return c.Project.Scene.Containment
}

// Seed returns the configured population seed; 0 means time-seeded.
func (c *Config) Seed() int64 {
	return c.Project.Scene.Seed
}

// HeadlessSize returns the virtual terminal size used without a TTY.
func (c *Config) HeadlessSize() (cols, rows int) {
	return c.Project.Headless.Cols, c.Project.Headless.Rows
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.KmapProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Render.FPS == 0 {
		pc.Render.FPS = defaultFPS
	}
	if pc.Render.Color == "" {
		pc.Render.Color = defaultColorMode
	}
	if pc.Scene.Containment == "" {
		pc.Scene.Containment = defaultContainment
	}
	if pc.Demo.Sandbox == nil {
		enabled := true
		pc.Demo.Sandbox = &enabled
	}
	if pc.Demo.SettleMS == nil {
		settle := defaultSettleMS
		pc.Demo.SettleMS = &settle
	}
	if pc.Headless.Cols == 0 {
		pc.Headless.Cols = defaultCols
	}
	if pc.Headless.Rows == 0 {
		pc.Headless.Rows = defaultRows
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Render.Color = strings.ToLower(strings.TrimSpace(pc.Render.Color))
	pc.Scene.Containment = strings.ToLower(strings.TrimSpace(pc.Scene.Containment))
	pc.Demo.Script = resolvePath(base, pc.Demo.Script)
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Render.FPS < 1 || pc.Render.FPS > maxFPS {
		return fmt.Errorf("render.fps must be between 1 and %d", maxFPS)
	}
	switch pc.Render.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("render.color must be 'auto', 'always' or 'never'")
	}
	switch pc.Scene.Containment {
	case "clusters", "wrap":
	default:
		return fmt.Errorf("scene.containment must be 'clusters' or 'wrap'")
	}
	if *pc.Demo.SettleMS < 0 {
		return fmt.Errorf("demo.settle_ms must be >= 0")
	}
	if pc.Bridge.Port < 0 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 0 and 65535")
	}
	if pc.Headless.Cols < minCols || pc.Headless.Rows < minRows {
		return fmt.Errorf("headless size must be at least %dx%d", minCols, minRows)
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
