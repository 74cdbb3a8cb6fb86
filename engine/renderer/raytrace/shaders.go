package raytrace

import (
	"fmt"

	"github.com/spaghettifunk/anima-rt/engine/assets"
	"github.com/spaghettifunk/anima-rt/engine/core"
)

// ShaderSource returns SPIR-V words for a path relative to the assets dir.
type ShaderSource interface {
	LoadAsset(path string, assetType assets.AssetType, params interface{}) (*assets.Resource, error)
	UnloadAsset(r *assets.Resource) error
}

func loadShader(src ShaderSource, path string) ([]uint32, error) {
	res, err := src.LoadAsset(path, assets.AssetTypeShader, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, core.ErrShaderLoad, err)
	}
	code, ok := res.Data.([]uint32)
	if !ok || len(code) == 0 {
		_ = src.UnloadAsset(res)
		return nil, fmt.Errorf("%s: no bytecode: %w", path, core.ErrShaderLoad)
	}
	// The loader hands over its slice, keep it before unloading clears Data.
	if err := src.UnloadAsset(res); err != nil {
		core.LogWarn("unloading %s: %s", path, err)
	}
	return code, nil
}
