package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestFilePersister_Persist(t *testing.T) {
	t.Parallel()

	t.Run("copies source to destination", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		source := filepath.Join(dir, "work", "document.kra")
		destination := filepath.Join(dir, "saves", "nested", "document.kra")
		require.NoError(t, os.MkdirAll(filepath.Dir(source), 0750))
		writeSource(t, source, "layer data v1")

		p := NewFilePersister(source, destination)
		require.NoError(t, p.Persist(context.Background()))

		data, err := os.ReadFile(destination)
		require.NoError(t, err)
		assert.Equal(t, "layer data v1", string(data))

		leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(destination), "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, leftovers, "temporary file should be renamed away")
	})

	t.Run("stale temporary path does not block the write", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		source := filepath.Join(dir, "document.kra")
		destination := filepath.Join(dir, "document.save")
		writeSource(t, source, "after crash")
		// A directory squatting on the old fixed temp name would break a plain write to it
		require.NoError(t, os.Mkdir(destination+".tmp", 0750))

		p := NewFilePersister(source, destination, WithMaxTries(1))
		require.NoError(t, p.Persist(context.Background()))

		data, err := os.ReadFile(destination)
		require.NoError(t, err)
		assert.Equal(t, "after crash", string(data))
	})

	t.Run("missing source reports component unloaded", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		p := NewFilePersister(filepath.Join(dir, "gone.kra"), filepath.Join(dir, "out.kra"))

		start := time.Now()
		err := p.Persist(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrComponentUnloaded)
		assert.True(t, IsComponentUnloaded(err))
		assert.Less(t, time.Since(start), time.Second, "unloaded source must not be retried")
	})

	t.Run("unchanged content is not rewritten", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		source := filepath.Join(dir, "document.kra")
		destination := filepath.Join(dir, "out", "document.kra")
		writeSource(t, source, "same bytes")

		p := NewFilePersister(source, destination)
		require.NoError(t, p.Persist(context.Background()))

		past := time.Now().Add(-time.Hour).Truncate(time.Second)
		require.NoError(t, os.Chtimes(destination, past, past))

		require.NoError(t, p.Persist(context.Background()))
		info, err := os.Stat(destination)
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(past), "unchanged source should skip the write")

		writeSource(t, source, "new bytes")
		require.NoError(t, p.Persist(context.Background()))
		data, err := os.ReadFile(destination)
		require.NoError(t, err)
		assert.Equal(t, "new bytes", string(data))
	})

	t.Run("unchanged source restores a lost snapshot", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			disturb func(t *testing.T, destination string)
		}{
			{
				name: "destination removed",
				disturb: func(t *testing.T, destination string) {
					t.Helper()
					require.NoError(t, os.Remove(destination))
				},
			},
			{
				name: "destination overwritten",
				disturb: func(t *testing.T, destination string) {
					t.Helper()
					require.NoError(t, os.WriteFile(destination, []byte("someone else"), 0600))
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				dir := t.TempDir()
				source := filepath.Join(dir, "work.kra")
				destination := filepath.Join(dir, "saves", "work.kra")
				writeSource(t, source, "layer data")

				p := NewFilePersister(source, destination)
				require.NoError(t, p.Persist(context.Background()))

				tt.disturb(t, destination)

				require.NoError(t, p.Persist(context.Background()))
				data, err := os.ReadFile(destination)
				require.NoError(t, err)
				assert.Equal(t, "layer data", string(data))
			})
		}
	})

	t.Run("contended destination lock fails the pass", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		source := filepath.Join(dir, "document.kra")
		destination := filepath.Join(dir, "document.save")
		writeSource(t, source, "content")

		holder := flock.New(destination + lockSuffix)
		locked, err := holder.TryLock()
		require.NoError(t, err)
		require.True(t, locked)
		defer func() { _ = holder.Unlock() }()

		p := NewFilePersister(source, destination,
			WithLockRetryDelay(10*time.Millisecond),
			WithMaxTries(1),
		)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err = p.Persist(ctx)
		require.Error(t, err)
		assert.False(t, IsComponentUnloaded(err))

		_, statErr := os.Stat(destination)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestFunc_Persist(t *testing.T) {
	t.Parallel()

	called := false
	var p Persister = Func(func(_ context.Context) error {
		called = true
		return ErrComponentUnloaded
	})

	err := p.Persist(context.Background())
	assert.True(t, called)
	assert.ErrorIs(t, err, ErrComponentUnloaded)
}
