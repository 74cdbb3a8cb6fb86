//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the windowed renderer.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	return goRun()
}

// Renders the scene on the CPU into snapshot.png.
func (Run) Snapshot() error {
	fmt.Println("Rendering CPU snapshot...")
	return goRun("-snapshot", "snapshot.png")
}

// Traces one GPU frame and reads it back into capture.png.
func (Run) Capture() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Capturing GPU frame...")
	return goRun("-capture", "capture.png", "-frames", "3")
}
