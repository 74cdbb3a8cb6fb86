package assets

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rt/engine/core"
)

func init() {
	core.SetLogOutput(io.Discard)
}

type rawLoader struct {
	loaded []string
}

func (l *rawLoader) Load(path string, params interface{}) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l.loaded = append(l.loaded, path)
	return &Resource{Name: filepath.Base(path), FullPath: path, Type: AssetTypeShader, DataSize: uint64(len(data)), Data: data}, nil
}

func (l *rawLoader) Unload(r *Resource) error {
	r.Data = nil
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newManager(t *testing.T, root string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root))
	t.Cleanup(func() { assert.NoError(t, am.Shutdown()) })
	return am
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, AssetTypeShader, determineAssetType("shaders/raytrace.comp.spv"))
	assert.Equal(t, AssetTypeScene, determineAssetType("scenes/demo.toml"))
	assert.Equal(t, AssetTypeNone, determineAssetType("shaders/raytrace.comp"))
	assert.Equal(t, "scene", AssetTypeScene.String())
}

func TestIndexAndLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shaders", "a.comp.spv"), "abcd")
	writeFile(t, filepath.Join(root, "scenes", "demo.toml"), "")
	writeFile(t, filepath.Join(root, "shaders", "a.comp"), "source")

	am := newManager(t, root)
	assert.Equal(t, 2, am.Count())

	loader := &rawLoader{}
	am.RegisterLoader(AssetTypeShader, loader)

	r, err := am.LoadAsset("shaders/a.comp.spv", AssetTypeShader, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), r.Data)
	assert.Equal(t, uint64(4), r.DataSize)
	info, ok := am.Lookup("shaders/a.comp.spv")
	require.True(t, ok)
	assert.False(t, info.LastLoaded.IsZero())

	require.NoError(t, am.UnloadAsset(r))
	assert.Nil(t, r.Data)

	_, err = am.LoadAsset("shaders/missing.spv", AssetTypeShader, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset("scenes/demo.toml", AssetTypeShader, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset("scenes/demo.toml", AssetTypeScene, nil)
	assert.Error(t, err, "no scene loader registered")
}

func TestInitializeRejectsMissingDir(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	assert.Error(t, am.Initialize(filepath.Join(t.TempDir(), "nope")))
	assert.NoError(t, am.Shutdown())
}

func TestWatcherTracksChanges(t *testing.T) {
	root := t.TempDir()
	am, err := NewAssetManager()
	require.NoError(t, err)

	var mu sync.Mutex
	seen := map[string]fsnotify.Op{}
	am.OnChange = func(path string, op fsnotify.Op) {
		mu.Lock()
		defer mu.Unlock()
		seen[path] |= op
	}
	require.NoError(t, am.Initialize(root))
	defer am.Shutdown()
	sawOp := func(path string, op fsnotify.Op) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return seen[path]&op != 0
		}
	}

	path := filepath.Join(root, "new.spv")
	writeFile(t, path, "abcd")
	assert.Eventually(t, func() bool {
		_, ok := am.Lookup("new.spv")
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, sawOp("new.spv", fsnotify.Create|fsnotify.Write), 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		_, ok := am.Lookup("new.spv")
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}
