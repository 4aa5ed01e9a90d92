package loaders

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

const spirvMagic = 0x07230203

// ShaderLoader reads a compiled SPIR-V module. The bytes are handed to the
// device unchanged; only the header is checked here so a GLSL source or a
// truncated file fails at load time instead of at pipeline creation.
type ShaderLoader struct {
	binary BinaryLoader
}

func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	res, err := sl.binary.Load(path, params)
	if err != nil {
		return nil, err
	}
	if err := ValidateSPIRV(res.Data.([]byte)); err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return res, nil
}

func (sl *ShaderLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	return nil
}

func ValidateSPIRV(code []byte) error {
	if len(code) < 20 {
		return errors.Errorf("%d bytes is shorter than a SPIR-V header", len(code))
	}
	if len(code)%4 != 0 {
		return errors.Errorf("size %d is not a multiple of 4", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return errors.Errorf("bad SPIR-V magic number %#08x", magic)
	}
	return nil
}
