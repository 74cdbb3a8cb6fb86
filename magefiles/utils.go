//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const configFile = "config.toml"

// glslc compiles one shader stage to SPIR-V for Vulkan 1.0.
func glslc(in, out string) error {
	return sh.RunV("glslc", "--target-env=vulkan1.0", in, "-o", out)
}

// goRun runs the renderer from source with the repository config and extra flags.
func goRun(flags ...string) error {
	return sh.RunV(mg.GoCmd(), append([]string{"run", ".", "-config", configFile}, flags...)...)
}

func binaryPath() string {
	return filepath.Join("bin", "anima-rt")
}
