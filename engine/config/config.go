package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting width.
	Width uint32 `toml:"width"`
	// Window starting height.
	Height uint32 `toml:"height"`
	// Window starting position x axis.
	PosX uint32 `toml:"pos_x"`
	// Window starting position y axis.
	PosY uint32 `toml:"pos_y"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	Validation     bool   `toml:"validation"`
	AssetsDir      string `toml:"assets_dir"`
	ComputeShader  string `toml:"compute_shader"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
}

type SceneConfig struct {
	// Scene file relative to the assets dir. Empty selects the built-in demo scene.
	File string `toml:"file"`
	// Angular speed of the light around the Y axis, radians per second.
	LightSpeed float64 `toml:"light_speed"`
}

// Config is the full application configuration as read from config.toml.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Scene    SceneConfig    `toml:"scene"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Name:   "anima-rt",
			Width:  800,
			Height: 600,
			PosX:   100,
			PosY:   100,
		},
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			Validation:     true,
			AssetsDir:      "assets",
			ComputeShader:  "shaders/raytrace.comp.spv",
			VertexShader:   "shaders/fullscreen.vert.spv",
			FragmentShader: "shaders/fullscreen.frag.spv",
		},
		Scene: SceneConfig{LightSpeed: 1.0},
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML into cfg, keeping values absent from data, then validates.
func Parse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d must be non-zero", c.Window.Width, c.Window.Height)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if math.IsNaN(c.Scene.LightSpeed) || math.IsInf(c.Scene.LightSpeed, 0) {
		return fmt.Errorf("light_speed must be finite")
	}
	if c.Renderer.ComputeShader == "" || c.Renderer.VertexShader == "" || c.Renderer.FragmentShader == "" {
		return fmt.Errorf("shader paths must be set")
	}
	return nil
}

// AspectRatio is width divided by height.
func (c *Config) AspectRatio() float32 {
	return float32(c.Window.Width) / float32(c.Window.Height)
}
