package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spirv = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newManager(t *testing.T, root string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root))
	t.Cleanup(func() { _ = am.Shutdown() })
	return am
}

func TestDetermineAssetType(t *testing.T) {
	tests := map[string]metadata.ResourceType{
		"shaders/geometry.vert.spv": metadata.ResourceTypeShader,
		"shaders/geometry.vert":     metadata.ResourceTypeNone,
		"textures/albedo.png":       metadata.ResourceTypeImage,
		"textures/albedo.webp":      metadata.ResourceTypeImage,
		"models/cube.obj":           metadata.ResourceTypeMesh,
		"models/cube.mtl":           metadata.ResourceTypeNone,
	}
	for path, want := range tests {
		assert.Equal(t, want, determineAssetType(path), path)
	}
}

func TestInitializeIndexesTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shaders/post.frag.spv", spirv)
	writeFile(t, root, "shaders/post.frag", []byte("#version 450"))
	writeFile(t, root, "models/cube.obj", []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))

	am := newManager(t, root)
	assert.Equal(t, 2, am.Count())

	info, ok := am.Lookup("shaders/post.frag.spv")
	require.True(t, ok)
	assert.Equal(t, metadata.ResourceTypeShader, info.Type)
}

func TestLoadAsset(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shaders/post.frag.spv", spirv)
	writeFile(t, root, "models/tri.obj", []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	am := newManager(t, root)

	res, err := am.LoadAsset("post.frag", metadata.ResourceTypeShader, nil)
	require.NoError(t, err)
	assert.Equal(t, spirv, res.Data)

	res, err = am.LoadAsset("tri", metadata.ResourceTypeMesh, nil)
	require.NoError(t, err)
	mesh := res.Data.(*metadata.MeshResourceData)
	assert.Len(t, mesh.Indices, 3)
	require.NoError(t, am.UnloadAsset(res, metadata.ResourceTypeMesh))
	assert.Nil(t, res.Data)

	info, ok := am.Lookup("shaders/post.frag.spv")
	require.True(t, ok)
	assert.False(t, info.LastLoaded.IsZero())

	_, err = am.LoadAsset("missing", metadata.ResourceTypeShader, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset("x", metadata.ResourceTypeNone, nil)
	assert.Error(t, err)
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shaders/geometry.vert.spv", spirv)
	am := newManager(t, root)

	writeFile(t, root, "shaders/geometry.frag.spv", spirv)
	assert.Eventually(t, func() bool {
		_, ok := am.Lookup("shaders/geometry.frag.spv")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "shaders", "geometry.vert.spv")))
	assert.Eventually(t, func() bool {
		_, ok := am.Lookup("shaders/geometry.vert.spv")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownIsIdempotent(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(t.TempDir()))
	require.NoError(t, am.Shutdown())
	assert.NoError(t, am.Shutdown())
}
