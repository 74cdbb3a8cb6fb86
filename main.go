/*
anima-rt ray traces a small analytic scene on the GPU with a compute shader
and presents the result through a full-screen graphics pass.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spaghettifunk/anima-rt/engine"
	"github.com/spaghettifunk/anima-rt/engine/assets"
	"github.com/spaghettifunk/anima-rt/engine/assets/loaders"
	"github.com/spaghettifunk/anima-rt/engine/config"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytrace"
	"github.com/spaghettifunk/anima-rt/engine/scene"
	"github.com/spaghettifunk/anima-rt/engine/scene/reference"
)

type options struct {
	configPath string
	scenePath  string
	snapshot   string
	capture    string
	frames     uint64
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "config.toml", "configuration file, optional")
	flag.StringVar(&o.scenePath, "scene", "", "scene file relative to the assets dir, overrides the config")
	flag.StringVar(&o.snapshot, "snapshot", "", "render one frame on the CPU to this .png/.bmp/.tiff file and exit")
	flag.StringVar(&o.capture, "capture", "", "read back the GPU image to this file after -frames frames")
	flag.Uint64Var(&o.frames, "frames", 0, "stop after this many frames, zero runs until quit")
	flag.Parse()
	return o
}

func main() {
	if err := run(parseFlags()); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}

func run(o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.scenePath != "" {
		cfg.Scene.File = o.scenePath
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return err
	}

	if o.snapshot != "" {
		return snapshot(cfg, o.snapshot)
	}
	return runEngine(cfg, o)
}

// snapshot renders the scene with the CPU reference tracer. No window or GPU
// is needed.
func snapshot(cfg *config.Config, out string) error {
	s := scene.DemoScene()
	if cfg.Scene.File != "" {
		var sl loaders.SceneLoader
		file := filepath.Join(cfg.Renderer.AssetsDir, cfg.Scene.File)
		res, err := sl.Load(file, nil)
		if err != nil {
			return err
		}
		if s, err = sceneOf(file, res); err != nil {
			return err
		}
	}
	if err := s.Validate(); err != nil {
		return err
	}

	w, h := cfg.Window.Width, cfg.Window.Height
	tracer := reference.New(s, scene.NewUniformBlock(s, w, h), int(w), int(h))
	if err := reference.WriteFile(out, tracer.Render()); err != nil {
		return err
	}
	core.LogInfo("snapshot %dx%d written to %s", w, h, out)
	return nil
}

func loadScene(am *assets.AssetManager, file string) (*scene.Scene, error) {
	if file == "" {
		return scene.DemoScene(), nil
	}
	res, err := am.LoadAsset(file, assets.AssetTypeScene, nil)
	if err != nil {
		return nil, err
	}
	return sceneOf(file, res)
}

func sceneOf(file string, res *assets.Resource) (*scene.Scene, error) {
	s, ok := res.Data.(*scene.Scene)
	if !ok || s == nil {
		return nil, fmt.Errorf("%s did not decode to a scene: %w", file, core.ErrInvalidScene)
	}
	return s, nil
}

func runEngine(cfg *config.Config, o options) (err error) {
	appConfig := engine.ApplicationConfigFrom(cfg)
	appConfig.MaxFrames = o.frames
	if o.capture != "" && appConfig.MaxFrames == 0 {
		appConfig.MaxFrames = 1
	}

	eng, err := engine.New(appConfig)
	if err != nil {
		return err
	}
	defer func() {
		if serr := eng.Shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()

	s, err := loadScene(eng.Assets(), cfg.Scene.File)
	if err != nil {
		return err
	}

	app := raytrace.NewApp(eng.Renderer(), raytrace.Options{
		Scene:          s,
		Shaders:        eng.Assets(),
		ComputeShader:  cfg.Renderer.ComputeShader,
		VertexShader:   cfg.Renderer.VertexShader,
		FragmentShader: cfg.Renderer.FragmentShader,
		LightSpeed:     cfg.Scene.LightSpeed,
	})
	if err := eng.Initialize(app); err != nil {
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			core.LogInfo("signal received, stopping")
			eng.Stop()
		}
	}()

	if err := eng.Run(); err != nil {
		return err
	}

	if o.capture != "" {
		img, err := app.Capture()
		if err != nil {
			return err
		}
		if err := reference.WriteFile(o.capture, img); err != nil {
			return err
		}
		core.LogInfo("captured frame %d to %s", app.Frames(), o.capture)
	}
	return nil
}
