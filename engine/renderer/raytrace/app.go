package raytrace

import (
	"fmt"

	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/scene"
)

// Presenter is the part of the framework the app drives every frame.
type Presenter interface {
	Context() *vulkan.VulkanContext
	AcquireNextImage() (uint32, error)
	Present() error
}

type Options struct {
	Scene   *scene.Scene
	Shaders ShaderSource
	// Shader paths relative to the assets dir.
	ComputeShader  string
	VertexShader   string
	FragmentShader string
	// Light orbit speed in radians per second.
	LightSpeed float64
}

// App ray traces the scene with a compute pass and presents the result with a
// full-screen graphics pass.
type App struct {
	presenter Presenter
	context   *vulkan.VulkanContext
	opts      Options

	width, height uint32

	buffers     *SceneBuffers
	uniform     *UniformBuffer
	target      *StorageImage
	compute     ComputePass
	graphics    GraphicsPass
	descriptors *Descriptors
	sync        *frameSync

	pendingDelta float64
	frame        uint64
	teardown     core.Teardown
	initialized  bool
}

func NewApp(p Presenter, opts Options) *App {
	return &App{presenter: p, opts: opts}
}

// Init builds every GPU resource for a width x height target and records the
// command buffers. On failure whatever was created is destroyed again.
func (a *App) Init(width, height uint32) error {
	if a.initialized {
		return fmt.Errorf("raytrace app already initialized: %w", core.ErrInitialization)
	}
	if err := scene.ValidateLayout(); err != nil {
		return err
	}
	if err := a.init(width, height); err != nil {
		if uerr := a.teardown.Unwind(); uerr != nil {
			core.LogError("unwinding raytrace init: %s", uerr)
		}
		return fmt.Errorf("raytrace init: %w", err)
	}
	a.initialized = true
	core.LogInfo("raytrace app ready at %dx%d", a.width, a.height)
	return nil
}

func (a *App) init(width, height uint32) error {
	a.context = a.presenter.Context()
	ctx := a.context
	// The target follows the swapchain extent, which may differ from the
	// requested window size on high density displays.
	a.width, a.height = ctx.FramebufferWidth, ctx.FramebufferHeight
	if a.width == 0 || a.height == 0 {
		a.width, a.height = width, height
	}

	var err error
	if a.buffers, err = NewSceneBuffers(ctx, a.opts.Scene); err != nil {
		return err
	}
	a.teardown.PushFunc("scene buffers", func() { a.buffers.Destroy(ctx) })

	if a.uniform, err = NewUniformBuffer(ctx, a.opts.Scene, a.width, a.height, a.opts.LightSpeed); err != nil {
		return err
	}
	a.teardown.PushFunc("uniform buffer", func() { a.uniform.Destroy(ctx) })

	if a.target, err = NewStorageImage(ctx, a.width, a.height); err != nil {
		return err
	}
	a.teardown.PushFunc("storage image", func() { a.target.Destroy(ctx) })

	a.teardown.PushFunc("compute pass", func() { a.compute.destroy(ctx) })
	if err := a.compute.createLayout(ctx); err != nil {
		return err
	}
	a.teardown.PushFunc("graphics pass", func() { a.graphics.destroy(ctx) })
	if err := a.graphics.createLayout(ctx); err != nil {
		return err
	}

	compCode, err := loadShader(a.opts.Shaders, a.opts.ComputeShader)
	if err != nil {
		return err
	}
	if err := a.compute.createPipeline(ctx, compCode); err != nil {
		return err
	}
	vertCode, err := loadShader(a.opts.Shaders, a.opts.VertexShader)
	if err != nil {
		return err
	}
	fragCode, err := loadShader(a.opts.Shaders, a.opts.FragmentShader)
	if err != nil {
		return err
	}
	if err := a.graphics.createPipeline(ctx, vertCode, fragCode); err != nil {
		return err
	}

	if a.descriptors, err = newDescriptors(ctx, a.compute.SetLayout, a.graphics.SetLayout); err != nil {
		return err
	}
	a.teardown.PushFunc("descriptors", func() { a.descriptors.destroy(ctx) })
	if err := a.descriptors.write(ctx, a.target, a.uniform, a.buffers); err != nil {
		return err
	}

	if err := a.compute.record(ctx, a.descriptors.ComputeSet, a.target.Image, a.buffers.Counts); err != nil {
		return err
	}
	if err := a.graphics.record(ctx, a.descriptors.GraphicsSet); err != nil {
		return err
	}

	if a.sync, err = newFrameSync(ctx); err != nil {
		return err
	}
	a.teardown.PushFunc("frame sync", func() { a.sync.destroy(ctx) })
	return nil
}

// Update accumulates frame time for the next Render. It never asks the
// engine to stop.
func (a *App) Update(deltaTime float64) bool {
	a.pendingDelta += deltaTime
	return true
}

// OnResize refuses any extent other than the one the target was built for.
func (a *App) OnResize(width, height uint32) error {
	if !a.initialized || (width == a.width && height == a.height) {
		return nil
	}
	return fmt.Errorf("%dx%d requested, target is %dx%d: %w", width, height, a.width, a.height, core.ErrResizeUnsupported)
}

// Extent is the size of the storage image.
func (a *App) Extent() (uint32, uint32) {
	return a.width, a.height
}

// Frames is the number of frames presented so far.
func (a *App) Frames() uint64 {
	return a.frame
}

// Cleanup waits for the device and releases the app's resources in reverse
// creation order.
func (a *App) Cleanup() error {
	if a.context == nil {
		return nil
	}
	if a.initialized {
		if err := vulkan.DeviceWaitIdle(a.context); err != nil {
			core.LogWarn("device wait idle before cleanup: %s", err)
		}
	}
	err := a.teardown.Unwind()
	a.initialized = false
	return err
}
