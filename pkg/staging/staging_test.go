package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreaLifecycle(t *testing.T) {
	area, err := NewArea(t.TempDir())
	require.NoError(t, err)

	info, err := os.Stat(area.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, area.Close())
	_, err = os.Stat(area.Root())
	assert.True(t, os.IsNotExist(err))
}

func TestScopeReleaseRemovesFiles(t *testing.T) {
	area, err := NewArea(t.TempDir())
	require.NoError(t, err)
	defer area.Close()

	scope, err := area.Acquire("data/file.bin")
	require.NoError(t, err)

	path := scope.Path("object")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	require.NoError(t, scope.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Double release is a no-op.
	assert.NoError(t, scope.Release())
}

func TestScopesAreIsolated(t *testing.T) {
	area, err := NewArea(t.TempDir())
	require.NoError(t, err)
	defer area.Close()

	a, err := area.Acquire("same-key")
	require.NoError(t, err)
	b, err := area.Acquire("same-key")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path("object"), b.Path("object"))

	require.NoError(t, os.WriteFile(a.Path("object"), []byte("a"), 0o644))
	require.NoError(t, a.Release())

	// Releasing one scope must not touch the other.
	_, err = os.Stat(filepath.Dir(b.Path("object")))
	assert.NoError(t, err)
}

func TestCloseCatchesLeakedScopes(t *testing.T) {
	area, err := NewArea(t.TempDir())
	require.NoError(t, err)

	scope, err := area.Acquire("leaked")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(scope.Path("object"), []byte("x"), 0o644))

	require.NoError(t, area.Close())
	_, err = os.Stat(scope.Path("object"))
	assert.True(t, os.IsNotExist(err))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "file.bin", sanitize("data/with/slashes/file.bin"))
	assert.Equal(t, "object", sanitize(""))
	assert.Equal(t, "we_ird_name", sanitize("we*ird name"))
	assert.LessOrEqual(t, len(sanitize("averylongname"+string(make([]byte, 100)))), 40)
}
