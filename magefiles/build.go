//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

var shaderSources = []string{"raytrace.comp", "fullscreen.vert", "fullscreen.frag"}

// Compiles the GLSL sources to SPIR-V with glslc. Up to date outputs are skipped.
func (Build) Shaders() error {
	for _, src := range shaderSources {
		in := filepath.Join(shaderDir, src)
		out := in + ".spv"
		stale, err := target.Path(out, in)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if err := glslc(in, out); err != nil {
			return err
		}
	}
	return nil
}

// Builds the anima-rt binary into bin/.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	fmt.Println("Building anima-rt...")
	return sh.RunV(mg.GoCmd(), "build", "-o", binaryPath(), ".")
}

// Runs the unit tests.
func (Build) Test() error {
	return sh.RunV(mg.GoCmd(), "test", "./...")
}
