//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
	"github.com/pelletier/go-toml/v2"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// The array sizes in the shaders are part of the descriptor layout, so they
// are taken from the same config the engine reads.
type shaderDefines struct {
	Renderer struct {
		MaxLights *int `toml:"max_lights"`
	} `toml:"renderer"`
}

func shaderArgs(configPath string) ([]string, error) {
	lights := 4
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		var defs shaderDefines
		if err := toml.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configPath, err)
		}
		if defs.Renderer.MaxLights != nil {
			lights = *defs.Renderer.MaxLights
		}
	}
	// one albedo texture, either loaded or the white placeholder
	return []string{"-DTEXTURE_COUNT=1", fmt.Sprintf("-DLIGHT_COUNT=%d", lights)}, nil
}

// Compiles every GLSL stage under assets/shaders to <name>.spv with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	defines, err := shaderArgs("anima.toml")
	if err != nil {
		return err
	}
	for _, pattern := range []string{"*.vert", "*.frag"} {
		sources, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		for _, src := range sources {
			out := src + ".spv"
			// skip stages whose SPIR-V is newer than the source and the config
			if stale, err := target.Path(out, src, "anima.toml"); err == nil && !stale {
				continue
			}
			args := append(append([]string{}, defines...), src, "-o", out)
			if err := sh.RunV("glslc", args...); err != nil {
				return fmt.Errorf("compiling %s: %w", src, err)
			}
		}
	}
	return nil
}

// Runs the tests of every package.
func (Build) Test() error {
	return sh.RunV("go", "test", "./...")
}
