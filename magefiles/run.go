//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed with anima.toml.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	return sh.RunV("go", "run", ".", "-config", "anima.toml")
}
