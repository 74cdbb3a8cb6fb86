package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/anima-rt/engine/assets"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

// ShaderLoader reads a compiled SPIR-V module into 32-bit words.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, params interface{}) (*assets.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := BytesToBytecode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &assets.Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     assets.AssetTypeShader,
		DataSize: uint64(len(data)),
		Data:     code,
	}, nil
}

func (sl *ShaderLoader) Unload(r *assets.Resource) error {
	r.Data = nil
	return nil
}

// BytesToBytecode decodes little-endian SPIR-V words and checks the header.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("spir-v size %d is not a positive multiple of 4", len(b))
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != SPIRVMagic {
		return nil, fmt.Errorf("bad spir-v magic 0x%08x", byteCode[0])
	}
	return byteCode, nil
}
