package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
)

const spirvMagic = 0x07230203

// spirvWords reinterprets a SPIR-V binary as the little-endian words
// vkCreateShaderModule expects.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("bad SPIR-V magic number %#08x", words[0])
	}
	return words, nil
}

func (d *Device) createShaderModule(code []byte) (vk.ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.LogicalDevice, &createInfo, d.Allocator, &module); res != vk.Success {
		return nil, newError("vkCreateShaderModule", res)
	}
	return module, nil
}
