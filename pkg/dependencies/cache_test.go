package dependencies

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingInspector_ReusesUntilLockfileChanges(t *testing.T) {
	project := t.TempDir()
	lockfile := filepath.Join(project, "Cargo.lock")
	require.NoError(t, os.WriteFile(filepath.Join(project, "Cargo.toml"), []byte("[package]\n"), 0644))
	require.NoError(t, os.WriteFile(lockfile, []byte("version = 3\n"), 0644))

	inner := &fakeInspector{name: "cargo", detected: true, lines: []string{"clap v4.5.4"}}
	cached := NewCachingInspector(inner, 4, time.Minute)
	ctx := context.Background()

	first, err := cached.Inspect(ctx, project)
	require.NoError(t, err)
	second, err := cached.Inspect(ctx, project)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.calls)

	require.NoError(t, os.WriteFile(lockfile, []byte("version = 3\n# updated\n"), 0644))
	_, err = cached.Inspect(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	hits, misses := cached.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestCachingInspector_ErrorsNotCached(t *testing.T) {
	inner := &fakeInspector{name: "go", detected: true, err: errors.New("go.mod: parse error")}
	cached := NewCachingInspector(inner, 0, time.Minute)

	_, err := cached.Inspect(context.Background(), t.TempDir())
	require.Error(t, err)
	_, err = cached.Inspect(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingInspector_UnknownToolPassesThrough(t *testing.T) {
	inner := &fakeInspector{name: "bazel", detected: true}
	cached := NewCachingInspector(inner, 4, time.Minute)
	dir := t.TempDir()

	assert.True(t, cached.Detect(dir))
	assert.Equal(t, "bazel", cached.Name())
	for i := 0; i < 2; i++ {
		_, err := cached.Inspect(context.Background(), dir)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestCachedInspectors(t *testing.T) {
	wrapped := CachedInspectors(DefaultInspectors(time.Second), 0, time.Minute)
	require.Len(t, wrapped, 2)
	assert.Equal(t, "cargo", wrapped[0].Name())
	assert.IsType(t, &CachingInspector{}, wrapped[1])
}
