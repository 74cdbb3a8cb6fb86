package core

import (
	"errors"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrInitialization     = errors.New("initialization failed")
	ErrShaderLoad         = errors.New("shader load failed")
	ErrDescriptorPool     = errors.New("descriptor pool exhausted")
	ErrLayoutMismatch     = errors.New("host and shader layout mismatch")
	ErrDeviceLost         = errors.New("device lost")
	ErrSubmit             = errors.New("queue submission failed")
	ErrResizeUnsupported  = errors.New("resize past initial dimensions is not supported")
	ErrInvalidScene       = errors.New("invalid scene")
	ErrUnknown            = errors.New("unknown")
)
