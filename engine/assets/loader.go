package assets

// AssetType classifies files under the assets directory by extension.
type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeShader
	AssetTypeScene
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeShader:
		return "shader"
	case AssetTypeScene:
		return "scene"
	default:
		return "none"
	}
}

// Resource is a loaded asset. Data holds the loader specific payload.
type Resource struct {
	Name     string
	FullPath string
	Type     AssetType
	DataSize uint64
	Data     interface{}
}

type Loader interface {
	Load(path string, params interface{}) (*Resource, error)
	Unload(*Resource) error
}
