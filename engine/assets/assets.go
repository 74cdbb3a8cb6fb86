package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-rt/engine/core"
)

type AssetInfo struct {
	Path       string
	Type       AssetType
	Modified   time.Time
	LastLoaded time.Time
}

// AssetManager indexes the assets directory and keeps the index current with
// a file watcher. Keys are slash separated paths relative to the root.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	started  bool

	// OnChange is called from the watcher goroutine after an indexed asset is
	// created, written or removed.
	OnChange func(path string, op fsnotify.Op)
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Initialize indexes assetsDir and starts watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	info, err := os.Stat(assetsDir)
	if err != nil {
		return fmt.Errorf("assets dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("assets dir %s is not a directory", assetsDir)
	}
	am.root = assetsDir

	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}
	am.started = true
	go am.start()

	core.LogInfo("indexed %d assets under %s", am.Count(), assetsDir)
	return nil
}

// RegisterLoader sets the loader used for assetType.
func (am *AssetManager) RegisterLoader(assetType AssetType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name)
}

// LoadAsset loads the indexed asset at path, relative to the assets root.
func (am *AssetManager) LoadAsset(path string, assetType AssetType, params interface{}) (*Resource, error) {
	key := filepath.ToSlash(filepath.Clean(path))

	am.mutex.Lock()
	asset, exists := am.assets[key]
	if !exists {
		am.mutex.Unlock()
		return nil, fmt.Errorf("asset not found: %s", key)
	}
	if asset.Type != assetType {
		am.mutex.Unlock()
		return nil, fmt.Errorf("asset %s is a %s, not a %s", key, asset.Type, assetType)
	}
	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		am.mutex.Unlock()
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	asset.LastLoaded = time.Now()
	am.assets[key] = asset
	am.mutex.Unlock()

	core.LogDebug("loading %s %s", asset.Type, key)
	return loader.Load(filepath.Join(am.root, filepath.FromSlash(key)), params)
}

func (am *AssetManager) UnloadAsset(r *Resource) error {
	am.mutex.RLock()
	loader, ok := am.loaders[r.Type]
	am.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("no loader registered for asset type: %s", r.Type)
	}
	return loader.Unload(r)
}

// Lookup returns the index entry for path.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	a, ok := am.assets[filepath.ToSlash(filepath.Clean(path))]
	return a, ok
}

// Count is the number of indexed assets.
func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Shutdown stops the watcher and waits for its goroutine to exit.
func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	if !am.started {
		return am.fsnotify.Close()
	}
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("could not watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			changed := false
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				changed = am.handleFileEvent(e.Name)
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				changed = am.removeAsset(e.Name)
			}
			if changed {
				core.LogDebug("asset %s: %s", e.Op, e.Name)
				if am.OnChange != nil {
					am.OnChange(am.key(e.Name), e.Op)
				}
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under path to the watch list and
// indexes the files found.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

func (am *AssetManager) key(path string) string {
	rel, err := filepath.Rel(am.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	key := am.key(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	prev := am.assets[key]
	am.assets[key] = AssetInfo{
		Path:       key,
		Type:       assetType,
		Modified:   info.ModTime(),
		LastLoaded: prev.LastLoaded,
	}
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) bool {
	key := am.key(path)
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if _, ok := am.assets[key]; !ok {
		return false
	}
	delete(am.assets, key)
	return true
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeShader
	case ".toml":
		return AssetTypeScene
	default:
		return AssetTypeNone
	}
}
