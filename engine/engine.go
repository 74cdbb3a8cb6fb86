package engine

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/spaghettifunk/anima-rt/engine/assets"
	"github.com/spaghettifunk/anima-rt/engine/assets/loaders"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/platform"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageBootComplete:
		return "boot complete"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

type Engine struct {
	currentStage Stage
	config       *ApplicationConfig
	app          Application

	isRunning   atomic.Bool
	isSuspended bool

	events       *core.EventBus
	platform     *platform.Platform
	renderer     *vulkan.VulkanRenderer
	assetManager *assets.AssetManager

	width    uint32
	height   uint32
	clock    *core.Clock
	metrics  *core.FrameMetrics
	lastTime float64

	teardown core.Teardown
}

// New boots the engine: event bus, platform, renderer front and the asset
// index. Nothing touches the window or the GPU until Initialize.
func New(cfg *ApplicationConfig) (*Engine, error) {
	e := &Engine{
		currentStage: EngineStageBooting,
		config:       cfg,
		events:       core.NewEventBus(),
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		width:        cfg.StartWidth,
		height:       cfg.StartHeight,
	}

	p, err := platform.New(e.events)
	if err != nil {
		return nil, err
	}
	e.platform = p
	e.renderer = vulkan.New(p, cfg.Validation)

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	am.RegisterLoader(assets.AssetTypeShader, &loaders.ShaderLoader{})
	am.RegisterLoader(assets.AssetTypeScene, &loaders.SceneLoader{})

	dir, err := filepath.Abs(cfg.AssetsDir)
	if err != nil {
		return nil, err
	}
	if err := am.Initialize(dir); err != nil {
		_ = am.Shutdown()
		return nil, fmt.Errorf("assets %s: %w", dir, err)
	}
	e.assetManager = am
	e.teardown.Push("assets", am.Shutdown)
	e.teardown.PushFunc("events", e.events.Shutdown)

	e.currentStage = EngineStageBootComplete
	return e, nil
}

// Renderer exposes the framework layer to the application.
func (e *Engine) Renderer() *vulkan.VulkanRenderer {
	return e.renderer
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Metrics reports frame timing of the running loop.
func (e *Engine) Metrics() *core.FrameMetrics {
	return e.metrics
}

// Initialize opens the window, brings up Vulkan and initializes app.
func (e *Engine) Initialize(app Application) error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine initialize in stage %s: %w", e.currentStage, core.ErrInitialization)
	}
	e.currentStage = EngineStageInitializing
	e.app = app

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_KEY_RELEASED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.platform.Startup(e.config.Name, e.config.StartPosX, e.config.StartPosY, e.config.StartWidth, e.config.StartHeight); err != nil {
		return err
	}
	e.teardown.Push("platform", e.platform.Shutdown)

	if err := e.renderer.Initialize(e.config.Name, e.config.StartWidth, e.config.StartHeight); err != nil {
		return err
	}
	e.teardown.Push("renderer", e.shutdownRenderer)

	ctx := e.renderer.Context()
	e.width, e.height = ctx.FramebufferWidth, ctx.FramebufferHeight

	if err := e.app.Init(e.width, e.height); err != nil {
		return err
	}
	e.teardown.Push("application", e.app.Cleanup)

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) shutdownRenderer() error {
	err := e.renderer.Shutdown()
	if leaks := e.renderer.Context().Tracker.ReportLeaks(); leaks > 0 {
		core.LogWarn("%d GPU objects were not released", leaks)
	}
	return err
}

// Run drives the application until quit, a failed frame, or MaxFrames.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine run in stage %s: %w", e.currentStage, core.ErrInitialization)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runningTime float64
	for e.isRunning.Load() {
		pump := e.platform.PumpMessages
		if e.isSuspended {
			pump = e.platform.WaitMessages
		}
		if !pump() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if !e.app.Update(delta) {
			core.LogInfo("application asked to stop")
			e.isRunning.Store(false)
			break
		}
		if err := e.app.Render(); err != nil {
			core.LogError("render failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)
		runningTime += delta
		if runningTime >= 1 {
			core.LogDebug("%.1f fps, %.2f ms/frame", e.metrics.FPS(), e.metrics.FrameTime())
			runningTime = 0
		}

		e.lastTime = currentTime

		if e.config.MaxFrames > 0 && e.metrics.Frames() >= e.config.MaxFrames {
			core.LogInfo("rendered %d frames, stopping", e.metrics.Frames())
			e.isRunning.Store(false)
		}
	}
	return nil
}

// Stop ends the loop after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown releases everything in reverse order of creation.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)
	return e.teardown.Unwind()
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_KEY_PRESSED:
		core.LogDebug("key %d pressed", data.Data.U32[0])
	case core.EVENT_CODE_KEY_RELEASED:
		core.LogDebug("key %d released", data.Data.U32[0])
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]

	// Handle minimization
	if width == 0 || height == 0 {
		if !e.isSuspended {
			core.LogInfo("Window minimized, suspending application.")
			e.isSuspended = true
		}
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
		// Time spent minimized is not frame time.
		e.clock.Update()
		e.lastTime = e.clock.Elapsed()
	}
	if width == e.width && height == e.height {
		return true
	}

	core.LogDebug("Window resize: %d, %d", width, height)
	if e.app != nil {
		if err := e.app.OnResize(width, height); err != nil {
			core.LogError("resize: %s", err)
			e.isRunning.Store(false)
		}
	}
	return true
}
