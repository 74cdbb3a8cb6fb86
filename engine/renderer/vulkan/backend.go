package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/platform"
)

// Clear color of the main render pass, visible only if the full-screen pass
// draws nothing.
var clearColor = [4]float32{0.0, 0.0, 0.2, 1.0}

type VulkanRenderer struct {
	platform    *platform.Platform
	FrameNumber uint64
	context     *VulkanContext
	teardown    core.Teardown

	debug bool
}

func New(p *platform.Platform, validation bool) *VulkanRenderer {
	return &VulkanRenderer{
		platform:    p,
		FrameNumber: 0,
		context:     NewVulkanContext(),
		debug:       validation,
	}
}

func (vr *VulkanRenderer) Context() *VulkanContext {
	return vr.context
}

// Initialize brings up instance, surface, device, swapchain, render pass,
// framebuffers, per-image command buffers and the acquire/present semaphores.
// A failure unwinds whatever was already created.
func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	if err := vr.initialize(appName, appWidth, appHeight); err != nil {
		if uerr := vr.teardown.Unwind(); uerr != nil {
			core.LogError("unwinding partial initialization: %s", uerr)
		}
		return fmt.Errorf("vulkan renderer: %w", err)
	}
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil: %w", core.ErrInitialization)
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %s: %w", err, core.ErrInitialization)
	}

	ctx := vr.context
	ctx.FramebufferWidth = appWidth
	ctx.FramebufferHeight = appHeight

	if err := vr.createInstance(appName); err != nil {
		return err
	}
	vr.teardown.PushFunc("instance", func() {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	})

	// Debugger
	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(ctx.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return fmt.Errorf("debug callback: %s: %w", err, core.ErrInitialization)
		}
		ctx.debugMessenger = dbg
		vr.teardown.PushFunc("debugger", func() {
			core.LogDebug("Destroying Vulkan debugger...")
			vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
			ctx.debugMessenger = vk.NullDebugReportCallback
		})
		core.LogDebug("Vulkan debugger created.")
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateWindowSurface(ctx.Instance)
	if err != nil {
		return fmt.Errorf("failed to create platform surface: %s: %w", err, core.ErrInitialization)
	}
	ctx.Surface = vk.SurfaceFromPointer(surface)
	vr.teardown.PushFunc("surface", func() {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	})
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := DeviceCreate(ctx); err != nil {
		// Partially created pools and device are cleaned by DeviceDestroy.
		if ctx.Device.LogicalDevice != nil {
			DeviceDestroy(ctx)
		}
		return err
	}
	vr.teardown.PushFunc("device", func() {
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(ctx)
	})

	// Swapchain
	sc, err := SwapchainCreate(ctx, ctx.FramebufferWidth, ctx.FramebufferHeight)
	if err != nil {
		return err
	}
	ctx.Swapchain = sc
	ctx.FramebufferWidth = sc.Extent.Width
	ctx.FramebufferHeight = sc.Extent.Height
	vr.teardown.PushFunc("swapchain", func() { ctx.Swapchain.SwapchainDestroy(ctx) })

	rp, err := RenderpassCreate(
		ctx,
		0, 0, float32(ctx.FramebufferWidth), float32(ctx.FramebufferHeight),
		clearColor[0], clearColor[1], clearColor[2], clearColor[3])
	if err != nil {
		return err
	}
	ctx.MainRenderpass = rp
	vr.teardown.PushFunc("renderpass", func() { ctx.MainRenderpass.RenderpassDestroy(ctx) })

	// Swapchain framebuffers.
	sc.Framebuffers = make([]*VulkanFramebuffer, sc.ImageCount)
	vr.teardown.PushFunc("framebuffers", func() {
		for _, fb := range ctx.Swapchain.Framebuffers {
			if fb != nil {
				fb.Destroy(ctx)
			}
		}
	})
	for i := 0; i < int(sc.ImageCount); i++ {
		fb, err := FramebufferCreate(ctx, rp, ctx.FramebufferWidth, ctx.FramebufferHeight, []vk.ImageView{sc.Views[i]})
		if err != nil {
			return err
		}
		sc.Framebuffers[i] = fb
	}

	// Command buffers, one per swapchain image.
	ctx.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, sc.ImageCount)
	vr.teardown.PushFunc("command buffers", func() {
		for _, cb := range ctx.GraphicsCommandBuffers {
			if cb != nil {
				cb.Free(ctx, ctx.Device.GraphicsCommandPool)
			}
		}
		ctx.GraphicsCommandBuffers = nil
	})
	for i := range ctx.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(ctx, ctx.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		ctx.GraphicsCommandBuffers[i] = cb
	}
	core.LogDebug("Vulkan command buffers created.")

	// Sync objects.
	if ctx.ImageAvailableSemaphore, err = NewSemaphore(ctx, "image-available"); err != nil {
		return err
	}
	vr.teardown.PushFunc("image-available semaphore", func() { ctx.ImageAvailableSemaphore.Destroy(ctx) })
	if ctx.RenderFinishedSemaphore, err = NewSemaphore(ctx, "render-finished"); err != nil {
		return err
	}
	vr.teardown.PushFunc("render-finished semaphore", func() { ctx.RenderFinishedSemaphore.Destroy(ctx) })

	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	ctx := vr.context
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Anima Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	for _, name := range vr.platform.GetRequiredExtensionNames() {
		if name != "VK_KHR_surface" {
			requiredExtensions = append(requiredExtensions, name)
		}
	}

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	var requiredLayers []string
	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)

		// If validation should be done, make sure the required layers exist.
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			return resultError("vkEnumerateInstanceLayerProperties", res)
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			return resultError("vkEnumerateInstanceLayerProperties", res)
		}

		available := make(map[string]struct{}, availableLayerCount)
		for i := range availableLayers {
			availableLayers[i].Deref()
			available[vk.ToString(availableLayers[i].LayerName[:])] = struct{}{}
		}
		for _, layer := range requiredLayers {
			core.LogInfo("Searching for layer: %s...", layer)
			if _, ok := available[layer]; !ok {
				return fmt.Errorf("required validation layer is missing: %s: %w", layer, core.ErrInitialization)
			}
			core.LogInfo("Found.")
		}
		core.LogInfo("All required validation layers are present.")
	}

	core.LogDebug("Required extensions: %v", requiredExtensions)
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, ctx.Allocator, &ctx.Instance); res != vk.Success {
		err := resultError("vkCreateInstance", res)
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(ctx.Instance); err != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		return fmt.Errorf("init instance: %s: %w", err, core.ErrInitialization)
	}

	core.LogInfo("Vulkan Instance created.")
	return nil
}

// Shutdown waits for the device and destroys everything Initialize created,
// in reverse order.
func (vr *VulkanRenderer) Shutdown() error {
	if err := DeviceWaitIdle(vr.context); err != nil {
		core.LogWarn("device wait idle before shutdown: %s", err)
	}
	return vr.teardown.Unwind()
}

// AcquireNextImage blocks until the next swapchain image is known and
// records it in the context. The image-available semaphore is signaled once
// the image can be written.
func (vr *VulkanRenderer) AcquireNextImage() (uint32, error) {
	ctx := vr.context
	imageIndex, err := ctx.Swapchain.SwapchainAcquireNextImageIndex(ctx, math.MaxUint64, ctx.ImageAvailableSemaphore.Handle, vk.NullFence)
	if err != nil {
		return 0, err
	}
	ctx.ImageIndex = imageIndex
	return imageIndex, nil
}

// Present hands the current image back to the swapchain once the
// render-finished semaphore is signaled.
func (vr *VulkanRenderer) Present() error {
	ctx := vr.context
	if err := ctx.Swapchain.SwapchainPresent(ctx, ctx.Device.PresentQueue, ctx.RenderFinishedSemaphore.Handle, ctx.ImageIndex); err != nil {
		return err
	}
	vr.FrameNumber++
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
