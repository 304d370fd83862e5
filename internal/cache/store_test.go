package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("LoadMissingFile", func(t *testing.T) {
		s := NewStore(filepath.Join(t.TempDir(), "no_existe.json"), nil)
		s.Load()
		assert.Equal(t, 0, s.Len())
	})

	t.Run("LoadCorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte("{esto no es json"), 0644))

		// Caché corrupta = caché vacía, nunca un error fatal
		s := NewStore(path, nil)
		s.Load()
		assert.Equal(t, 0, s.Len())
	})

	t.Run("LookupAfterUpdate", func(t *testing.T) {
		s := NewStore("", nil)
		s.Update("/a/b.txt", 10, mtime, 0xdeadbeef)

		d, ok := s.Lookup("/a/b.txt", 10, mtime)
		require.True(t, ok)
		assert.Equal(t, uint64(0xdeadbeef), d)
		assert.Equal(t, int64(1), s.Hits())
	})

	t.Run("InvalidatesOnSizeChange", func(t *testing.T) {
		s := NewStore("", nil)
		s.Update("/a/b.txt", 10, mtime, 0xdeadbeef)

		_, ok := s.Lookup("/a/b.txt", 11, mtime)
		assert.False(t, ok)
		assert.Equal(t, int64(1), s.Misses())
	})

	t.Run("InvalidatesOnMTimeChange", func(t *testing.T) {
		s := NewStore("", nil)
		s.Update("/a/b.txt", 10, mtime, 0xdeadbeef)

		_, ok := s.Lookup("/a/b.txt", 10, mtime.Add(time.Second))
		assert.False(t, ok)
	})

	t.Run("UnknownPathIsMiss", func(t *testing.T) {
		s := NewStore("", nil)
		_, ok := s.Lookup("/nunca/visto.txt", 1, mtime)
		assert.False(t, ok)
	})

	t.Run("PersistAndReload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")

		s1 := NewStore(path, nil)
		s1.Update("/a/b.txt", 10, mtime, 0xcafe)
		s1.Update("/a/c.txt", 20, mtime, 0xbeef)
		require.NoError(t, s1.Persist())

		s2 := NewStore(path, nil)
		s2.Load()
		require.Equal(t, 2, s2.Len())

		d, ok := s2.Lookup("/a/b.txt", 10, mtime)
		require.True(t, ok)
		assert.Equal(t, uint64(0xcafe), d)
	})

	t.Run("MalformedEntryIsMiss", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		// Hash no hexadecimal: la entrada se trata como fallo de caché
		payload := `{"/a/b.txt":{"size":10,"mtime":` +
			"1714564800000000000" + `,"hash":"zzzz"}}`
		require.NoError(t, os.WriteFile(path, []byte(payload), 0644))

		s := NewStore(path, nil)
		s.Load()
		require.Equal(t, 1, s.Len())

		_, ok := s.Lookup("/a/b.txt", 10, time.Unix(0, 1714564800000000000))
		assert.False(t, ok)
	})

	t.Run("InMemoryPersistIsNoop", func(t *testing.T) {
		s := NewStore("", nil)
		s.Update("/a/b.txt", 10, mtime, 1)
		assert.NoError(t, s.Persist())
	})

	t.Run("PersistSkipsWhenClean", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		s := NewStore(path, nil)
		require.NoError(t, s.Persist())

		// Sin Update no hay nada que escribir
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
}
