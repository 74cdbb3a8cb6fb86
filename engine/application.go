package engine

import "github.com/spaghettifunk/anima-rt/engine/config"

// Application is what the engine drives once the window and the renderer
// are up.
type Application interface {
	// Init creates the application's resources for a width x height target.
	Init(width, height uint32) error
	// Update is called once per frame before Render. Returning false stops
	// the engine.
	Update(deltaTime float64) bool
	Render() error
	// OnResize is called when the framebuffer changes to a non-zero size.
	OnResize(width, height uint32) error
	Cleanup() error
}

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name string
	// Enables the Vulkan validation layers and debug callback.
	Validation bool
	// Root of the assets directory.
	AssetsDir string
	// Stop after this many frames. Zero runs until quit.
	MaxFrames uint64
}

// ApplicationConfigFrom maps the file configuration onto the engine's.
func ApplicationConfigFrom(cfg *config.Config) *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   cfg.Window.PosX,
		StartPosY:   cfg.Window.PosY,
		StartWidth:  cfg.Window.Width,
		StartHeight: cfg.Window.Height,
		Name:        cfg.Window.Name,
		Validation:  cfg.Renderer.Validation,
		AssetsDir:   cfg.Renderer.AssetsDir,
	}
}
