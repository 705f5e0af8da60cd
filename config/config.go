// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flowswarm/systems"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen" toml:"screen"`
	Grid      GridConfig      `yaml:"grid" toml:"grid"`
	Obstacles ObstaclesConfig `yaml:"obstacles" toml:"obstacles"`
	Field     FieldConfig     `yaml:"field" toml:"field"`
	Particles ParticlesConfig `yaml:"particles" toml:"particles"`
	Collision CollisionConfig `yaml:"collision" toml:"collision"`
	Workers   WorkersConfig   `yaml:"workers" toml:"workers"`
	Render    RenderConfig    `yaml:"render" toml:"render"`
	Headless  HeadlessConfig  `yaml:"headless" toml:"headless"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" toml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width" toml:"width"`   // 0 = grid width * cell size
	Height    int `yaml:"height" toml:"height"` // 0 = grid height * cell size + HUD
	TargetFPS int `yaml:"target_fps" toml:"target_fps"`
}

// GridConfig holds board dimensions.
type GridConfig struct {
	Width    int     `yaml:"width" toml:"width"`   // horizontal cells
	Height   int     `yaml:"height" toml:"height"` // vertical cells
	CellSize float64 `yaml:"cell_size" toml:"cell_size"`
}

// PointConfig is a cell address.
type PointConfig struct {
	X int `yaml:"x" toml:"x"`
	Y int `yaml:"y" toml:"y"`
}

// WallConfig is a straight run of obstacle cells.
type WallConfig struct {
	From PointConfig `yaml:"from" toml:"from"`
	To   PointConfig `yaml:"to" toml:"to"`
}

// ObstaclesConfig lists the blocked cells.
type ObstaclesConfig struct {
	Border bool          `yaml:"border" toml:"border"`
	Walls  []WallConfig  `yaml:"walls" toml:"walls"`
	Cells  []PointConfig `yaml:"cells" toml:"cells"`
}

// FieldConfig holds the force derivation weights.
type FieldConfig struct {
	OrthogonalWeight float64 `yaml:"orthogonal_weight" toml:"orthogonal_weight"`
	DiagonalWeight   float64 `yaml:"diagonal_weight" toml:"diagonal_weight"`
}

// ParticlesConfig holds the swarm population and steering parameters.
type ParticlesConfig struct {
	Count         int     `yaml:"count" toml:"count"`
	StartX        float64 `yaml:"start_x" toml:"start_x"`
	StartY        float64 `yaml:"start_y" toml:"start_y"`
	Size          float64 `yaml:"size" toml:"size"`
	Mass          float64 `yaml:"mass" toml:"mass"`
	MaxVelocity   float64 `yaml:"max_velocity" toml:"max_velocity"`
	MaxForce      float64 `yaml:"max_force" toml:"max_force"`
	MaxSpeed      float64 `yaml:"max_speed" toml:"max_speed"`
	InaccuracyMin float64 `yaml:"inaccuracy_min" toml:"inaccuracy_min"`
	InaccuracyMax float64 `yaml:"inaccuracy_max" toml:"inaccuracy_max"`
}

// CollisionConfig holds the obstacle response parameters.
type CollisionConfig struct {
	NearFactor float64 `yaml:"near_factor" toml:"near_factor"`
	FarFactor  float64 `yaml:"far_factor" toml:"far_factor"`
	Margin     float64 `yaml:"margin" toml:"margin"`
	Damping    float64 `yaml:"damping" toml:"damping"`
}

// WorkersConfig holds the worker pool settings.
type WorkersConfig struct {
	Count     int `yaml:"count" toml:"count"`           // 0 = GOMAXPROCS
	InboxSize int `yaml:"inbox_size" toml:"inbox_size"` // per-worker channel capacity
}

// RenderConfig holds board colours as 0xRRGGBB.
type RenderConfig struct {
	BaseColor       uint32  `yaml:"base_color" toml:"base_color"`
	ObstacleColor   uint32  `yaml:"obstacle_color" toml:"obstacle_color"`
	RefreshColor    uint32  `yaml:"refresh_color" toml:"refresh_color"`
	ParticleColor   uint32  `yaml:"particle_color" toml:"particle_color"`
	ParticleAlpha   float64 `yaml:"particle_alpha" toml:"particle_alpha"`
	VectorScale     float64 `yaml:"vector_scale" toml:"vector_scale"`
	ColorByDistance bool    `yaml:"color_by_distance" toml:"color_by_distance"`
}

// HeadlessConfig drives the goal when there is no pointer.
type HeadlessConfig struct {
	Waypoints        []PointConfig `yaml:"waypoints" toml:"waypoints"`
	TicksPerWaypoint int           `yaml:"ticks_per_waypoint" toml:"ticks_per_waypoint"`
}

// TelemetryConfig holds telemetry settings.
type TelemetryConfig struct {
	PerfCollectorWindow int `yaml:"perf_collector_window" toml:"perf_collector_window"`
	StatsInterval       int `yaml:"stats_interval" toml:"stats_interval"` // ticks between swarm stats rows
	SolveHistory        int `yaml:"solve_history" toml:"solve_history"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ScreenW32 float32 // effective screen width
	ScreenH32 float32 // effective screen height
	BoardW    float64 // grid width in world units
	BoardH    float64 // grid height in world units
	Layout    systems.ObstacleLayout
	Waypoints []systems.Coord
}

// HUDHeight is the strip below the board reserved for controls.
const HUDHeight = 60

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML or TOML file, merging with embedded
// defaults. The format is picked by extension (.toml, otherwise YAML).
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		if err := cfg.merge(path); err != nil {
			return nil, err
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays the file at path; only fields present in the file change.
func (c *Config) merge(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.BoardW = float64(c.Grid.Width) * c.Grid.CellSize
	c.Derived.BoardH = float64(c.Grid.Height) * c.Grid.CellSize

	// Screen defaults to the board plus the HUD strip
	screenW := c.Screen.Width
	if screenW == 0 {
		screenW = int(c.Derived.BoardW)
	}
	screenH := c.Screen.Height
	if screenH == 0 {
		screenH = int(c.Derived.BoardH) + HUDHeight
	}
	c.Derived.ScreenW32 = float32(screenW)
	c.Derived.ScreenH32 = float32(screenH)

	layout := systems.ObstacleLayout{Border: c.Obstacles.Border}
	for _, w := range c.Obstacles.Walls {
		layout.Walls = append(layout.Walls, systems.Wall{From: w.From.Coord(), To: w.To.Coord()})
	}
	for _, p := range c.Obstacles.Cells {
		layout.Cells = append(layout.Cells, p.Coord())
	}
	c.Derived.Layout = layout

	c.Derived.Waypoints = c.Derived.Waypoints[:0]
	for _, p := range c.Headless.Waypoints {
		c.Derived.Waypoints = append(c.Derived.Waypoints, p.Coord())
	}
}

// Coord converts to a grid address.
func (p PointConfig) Coord() systems.Coord {
	return systems.Coord{X: p.X, Y: p.Y}
}

// Validate reports the first invalid parameter as a *systems.ConfigError.
func (c *Config) Validate() error {
	bad := func(field, format string, args ...any) error {
		return &systems.ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	switch {
	case c.Grid.Width <= 0 || c.Grid.Height <= 0:
		return bad("grid dimensions", "must be positive, got %dx%d", c.Grid.Width, c.Grid.Height)
	case c.Grid.CellSize <= 0:
		return bad("grid.cell_size", "must be positive, got %v", c.Grid.CellSize)
	case c.Particles.Count < 0:
		return bad("particles.count", "must not be negative, got %d", c.Particles.Count)
	case c.Particles.InaccuracyMax < c.Particles.InaccuracyMin:
		return bad("particles.inaccuracy", "max %v < min %v", c.Particles.InaccuracyMax, c.Particles.InaccuracyMin)
	case c.Particles.MaxSpeed <= 0 || c.Particles.MaxForce <= 0 || c.Particles.MaxVelocity <= 0:
		return bad("particles steering", "limits must be positive")
	case c.Workers.Count < 0:
		return bad("workers.count", "must not be negative, got %d", c.Workers.Count)
	case c.Headless.TicksPerWaypoint < 0:
		return bad("headless.ticks_per_waypoint", "must not be negative, got %d", c.Headless.TicksPerWaypoint)
	}
	for _, p := range c.Derived.Waypoints {
		if p.X < 0 || p.Y < 0 || p.X >= c.Grid.Width || p.Y >= c.Grid.Height {
			return bad("headless.waypoints", "(%d,%d) outside %dx%d grid", p.X, p.Y, c.Grid.Width, c.Grid.Height)
		}
	}
	if _, err := c.Derived.Layout.Coords(c.Grid.Width, c.Grid.Height); err != nil {
		return err
	}
	return nil
}

// FieldWeights returns the solver weights.
func (c *Config) FieldWeights() systems.FieldWeights {
	return systems.FieldWeights{
		Orthogonal: c.Field.OrthogonalWeight,
		Diagonal:   c.Field.DiagonalWeight,
	}
}

// SteeringParams returns the particle seek parameters.
func (c *Config) SteeringParams() systems.SteeringParams {
	return systems.SteeringParams{
		MaxVelocity: c.Particles.MaxVelocity,
		MaxForce:    c.Particles.MaxForce,
		MaxSpeed:    c.Particles.MaxSpeed,
	}
}

// CollisionParams returns the obstacle response parameters.
func (c *Config) CollisionParams() systems.CollisionParams {
	return systems.CollisionParams{
		NearFactor: c.Collision.NearFactor,
		FarFactor:  c.Collision.FarFactor,
		Margin:     c.Collision.Margin,
		Damping:    c.Collision.Damping,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
