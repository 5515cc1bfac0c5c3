package assets_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltywallet/walletsync/internal/assets"
)

func templateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "icon.png"), []byte("default-icon"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pass.json"), []byte("{}"), 0o600))
	return dir
}

func TestPrivateAllocator_IsolatedAndRemoved(t *testing.T) {
	tmpl := templateDir(t)
	alloc := assets.NewPrivateAllocator(tmpl, t.TempDir())

	a, err := alloc.Acquire(context.Background(), "S/1")
	require.NoError(t, err)
	b, err := alloc.Acquire(context.Background(), "S/1")
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir, b.Dir)
	icon, err := os.ReadFile(filepath.Join(a.Dir, "icon.png"))
	require.NoError(t, err)
	assert.Equal(t, "default-icon", string(icon))
	assert.NoFileExists(t, filepath.Join(a.Dir, "pass.json"), "generated files are not copied")

	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
	assert.NoDirExists(t, a.Dir)
	assert.NoDirExists(t, b.Dir)
	assert.FileExists(t, filepath.Join(tmpl, "icon.png"), "template is untouched")
}

func TestPrivateAllocator_MissingTemplate(t *testing.T) {
	root := t.TempDir()
	alloc := assets.NewPrivateAllocator(filepath.Join(root, "missing"), root)

	_, err := alloc.Acquire(context.Background(), "S1")
	require.Error(t, err)

	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries, "failed acquire leaves nothing behind")
}

func TestSharedAllocator_ResetsAndSerializes(t *testing.T) {
	tmpl := templateDir(t)
	shared := filepath.Join(t.TempDir(), "work")
	alloc := assets.NewSharedAllocator(tmpl, shared, assets.NewKeyedMutex())

	first, err := alloc.Acquire(context.Background(), "S1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first.Dir, "logo.png"), []byte("first"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = alloc.Acquire(ctx, "S2")
	require.Error(t, err, "second holder must wait")

	require.NoError(t, first.Release())

	second, err := alloc.Acquire(context.Background(), "S2")
	require.NoError(t, err)
	defer second.Release()

	assert.NoFileExists(t, filepath.Join(second.Dir, "logo.png"), "previous holder's images are cleared")
	assert.FileExists(t, filepath.Join(second.Dir, "icon.png"))
}
