package stats

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(day string) func() time.Time {
	t, err := time.ParseInLocation(DateLayout, day, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(12 * time.Hour) }
}

func sum(m map[string]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// openStores yields one store per backend so every behaviour is checked
// against both.
func openStores(t *testing.T, opts ...Option) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fs, err := OpenFileStore(filepath.Join(dir, "stats.json"), opts...)
	require.NoError(t, err)
	sq, err := OpenSQLiteStore(filepath.Join(dir, "stats.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{BackendJSON: fs, BackendSQLite: sq}
}

func TestStoreIncrement(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t, WithClock(fixedClock("2024-01-02"))) {
		t.Run(name, func(t *testing.T) {
			r, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Zero(t, r.Count)
			assert.Empty(t, r.Keywords)
			assert.Empty(t, r.Daily)

			_, err = s.Increment(ctx, "x")
			require.NoError(t, err)
			_, err = s.Increment(ctx, "x")
			require.NoError(t, err)
			r, err = s.Increment(ctx, "y")
			require.NoError(t, err)

			assert.Equal(t, 3, r.Count)
			assert.Equal(t, map[string]int{"x": 2, "y": 1}, r.Keywords)
			assert.Equal(t, map[string]int{"2024-01-02": 3}, r.Daily)

			loaded, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, r, loaded)
		})
	}
}

func TestStoreDefaultKeyword(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			r, err := s.Increment(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, 1, r.Keywords[DefaultKeyword])
		})
	}
}

func TestStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	const workers, perWorker = 8, 25

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			keywords := []string{"a", "b", "c"}
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for j := 0; j < perWorker; j++ {
						_, err := s.Increment(ctx, keywords[(i+j)%len(keywords)])
						assert.NoError(t, err)
					}
				}(i)
			}
			wg.Wait()

			r, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, workers*perWorker, r.Count)
			assert.Equal(t, r.Count, sum(r.Keywords))
			assert.Equal(t, r.Count, sum(r.Daily))
		})
	}
}

func TestStoreDayRollover(t *testing.T) {
	ctx := context.Background()
	day := "2024-03-01"
	clock := func() time.Time { return fixedClock(day)() }

	for name, s := range openStores(t, WithClock(clock)) {
		t.Run(name, func(t *testing.T) {
			day = "2024-03-01"
			_, err := s.Increment(ctx, "a")
			require.NoError(t, err)
			day = "2024-03-02"
			r, err := s.Increment(ctx, "a")
			require.NoError(t, err)

			assert.Equal(t, map[string]int{"2024-03-01": 1, "2024-03-02": 1}, r.Daily)
			assert.Equal(t, 2, r.Keywords["a"])
		})
	}
}

func TestFileStoreKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	legacy := `{"count": 2, "keywords": {"news": 2}, "daily": {"2024-01-01": 2}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s, err := OpenFileStore(path, WithClock(fixedClock("2024-01-01")))
	require.NoError(t, err)

	r, err := s.Increment(context.Background(), "news")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Count)
	assert.Equal(t, 3, r.Keywords["news"])
	assert.Equal(t, CurrentVersion, r.Version)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":1`)
	assert.NoFileExists(t, path+".tmp")
}

func TestFileStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "stats.json")
	_, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	s, err := OpenFileStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"count": "many"}`), 0o644))

	_, err = s.Load(context.Background())
	require.ErrorIs(t, err, ErrFormat)

	_, err = s.Increment(context.Background(), "a")
	require.ErrorIs(t, err, ErrFormat)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"count": "many"}`, string(data))
}

func TestFileStoreMissingAfterOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFormat)
}

func TestSQLiteStoreFutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`UPDATE meta SET value = 99 WHERE key = 'version'`)
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	require.ErrorIs(t, err, ErrFormat)
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open("SQLite", filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", filepath.Join(dir, "a"))
	require.Error(t, err)
}

func TestStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Increment(ctx, "a")
			require.ErrorIs(t, err, context.Canceled)

			r, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Zero(t, r.Count)
		})
	}
}

func TestFileStoreRejectsNullDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

	_, err = s.Increment(context.Background(), "a")
	require.ErrorIs(t, err, ErrFormat)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
