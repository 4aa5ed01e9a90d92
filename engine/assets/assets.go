package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima-frames/engine/assets/loaders"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
)

type AssetInfo struct {
	// Path is relative to the asset root, with forward slashes.
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes the asset directory and keeps the index current
// while files are added, rewritten or removed.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeMesh, &loaders.ModelLoader{})

	if err := am.addRecursive(root); err != nil {
		return err
	}

	am.wg.Add(1)
	go am.start()

	core.LogInfo("asset manager watching %s (%d assets)", root, am.Count())
	return nil
}

// Shutdown stops the watch goroutine. It is safe to call more than once.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name, false)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// assetPath maps a logical asset name onto its place in the asset tree.
func assetPath(name string, resourceType metadata.ResourceType) (string, error) {
	switch resourceType {
	case metadata.ResourceTypeShader:
		return fmt.Sprintf("shaders/%s.spv", name), nil
	case metadata.ResourceTypeImage:
		return fmt.Sprintf("textures/%s", name), nil
	case metadata.ResourceTypeMesh:
		return fmt.Sprintf("models/%s.obj", name), nil
	default:
		return "", fmt.Errorf("unknown resource type %s", resourceType)
	}
}

// LoadAsset reads an asset through the loader registered for its type.
// Shaders are named without extension ("geometry.vert"), textures with
// ("albedo.png"), models without (".obj" is implied).
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	path, err := assetPath(name, resourceType)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		// Load or reload asset from disk if necessary
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	loader, loaderExists := am.loaders[resourceType]
	am.mutex.Unlock()

	if !exists {
		return nil, fmt.Errorf("asset not found: %s", path)
	}
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", resourceType)
	}

	res, err := loader.Load(filepath.Join(am.root, filepath.FromSlash(path)), params)
	if err != nil {
		core.LogError("failed to load %s: %s", path, err)
		return nil, err
	}
	core.LogDebug("loaded %s %s (%d bytes)", resourceType, path, res.DataSize)
	return res, nil
}

func (am *AssetManager) UnloadAsset(res *metadata.Resource, resourceType metadata.ResourceType) error {
	am.mutex.RLock()
	loader, ok := am.loaders[resourceType]
	am.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("no loader registered for asset type: %s", resourceType)
	}
	return loader.Unload(res)
}

// Lookup returns the index entry for a path relative to the asset root.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	a, ok := am.assets[path]
	return a, ok
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					am.watchRecursive(e.Name, false)
				}
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(e.Name) {
					core.LogDebug("asset %s changed", e.Name)
				}
			}
			// Can't stat a deleted directory, so just pretend that it's always a directory and
			// try to remove from the watch list.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found on the way. A file created before its
// directory watch is in place is only picked up by the walk.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

func (am *AssetManager) relative(path string) (string, bool) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) bool {
	rel, ok := am.relative(path)
	if !ok {
		return false
	}
	assetType := determineAssetType(rel)
	if assetType == metadata.ResourceTypeNone {
		return false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[rel] = AssetInfo{
		Path: rel,
		Type: assetType,
	}
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	rel, ok := am.relative(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, rel)
}

func determineAssetType(path string) metadata.ResourceType {
	switch filepath.Ext(path) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	case ".obj":
		return metadata.ResourceTypeMesh
	default:
		return metadata.ResourceTypeNone
	}
}
