package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	data := strings.Join([]string{
		"1.2.3.0\t1.2.3.255\t64500\tUS\tEXAMPLE-AS",
		"8.8.8.0\t8.8.8.255\t15169\tUS\tGOOGLE",
	}, "\n")
	snap, _, err := Normalize(strings.NewReader(data), FamilyV4, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return snap
}

func TestCacheSaveLoad(t *testing.T) {
	cache := NewCache(t.TempDir())
	snap := buildSnapshot(t)

	require.NoError(t, cache.Save(snap))

	loaded, err := cache.Load(FamilyV4)
	require.NoError(t, err)

	assert.Equal(t, FamilyV4, loaded.Family())
	assert.True(t, loaded.FetchedAt().Equal(snap.FetchedAt()))
	assert.Equal(t, snap.PrefixStrings(64500), loaded.PrefixStrings(64500))
	assert.Equal(t, snap.PrefixStrings(15169), loaded.PrefixStrings(15169))
	assert.Equal(t, "EXAMPLE-AS", loaded.ASNName(64500))
}

func TestCacheLoadMissing(t *testing.T) {
	cache := NewCache(t.TempDir())

	_, err := cache.Load(FamilyV4)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestCacheFamiliesIndependent(t *testing.T) {
	cache := NewCache(t.TempDir())
	require.NoError(t, cache.Save(buildSnapshot(t)))

	_, err := cache.Load(FamilyV6)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = cache.Load(FamilyV4)
	assert.NoError(t, err)
}

func TestCacheSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)
	require.NoError(t, cache.Save(buildSnapshot(t)))

	data := "10.0.0.0\t10.0.0.255\t64501\n"
	replacement, _, err := Normalize(strings.NewReader(data), FamilyV4, time.Now())
	require.NoError(t, err)
	require.NoError(t, cache.Save(replacement))

	loaded, err := cache.Load(FamilyV4)
	require.NoError(t, err)
	_, ok := loaded.Lookup(64500)
	assert.False(t, ok)
	assert.Equal(t, []string{"10.0.0.0/24"}, loaded.PrefixStrings(64501))
}

func TestCacheDetectsTamperedSnapshot(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)
	require.NoError(t, cache.Save(buildSnapshot(t)))

	path := filepath.Join(dir, "snapshot-v4.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, ' '), 0644))

	_, err = cache.Load(FamilyV4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestCacheCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	cache := NewCache(dir)

	require.NoError(t, cache.Save(buildSnapshot(t)))
	_, err := os.Stat(filepath.Join(dir, "snapshot-v4.json"))
	assert.NoError(t, err)
}
