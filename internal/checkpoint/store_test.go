package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T, path string) Store

func backends() map[string]struct {
	file    string
	factory storeFactory
} {
	return map[string]struct {
		file    string
		factory storeFactory
	}{
		"file": {
			file: "state.json",
			factory: func(t *testing.T, path string) Store {
				t.Helper()
				s, err := NewStore(context.Background(), BackendFile, path)
				require.NoError(t, err)
				return s
			},
		},
		"sqlite": {
			file: "state.db",
			factory: func(t *testing.T, path string) Store {
				t.Helper()
				s, err := NewStore(context.Background(), BackendSQLite, path)
				require.NoError(t, err)
				return s
			},
		},
	}
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestStore_LoadMissingRecordIsEmpty(t *testing.T) {
	t.Parallel()

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := b.factory(t, filepath.Join(t.TempDir(), b.file))
			t.Cleanup(func() { _ = s.Close() })

			cp, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, cp.Watermarks)
			assert.Equal(t, RunStateIdle, cp.RunState)

			wm, err := s.Get(context.Background(), StreamPerson)
			require.NoError(t, err)
			assert.True(t, wm.IsZero())
		})
	}
}

func TestStore_CommitMergesWithoutClobbering(t *testing.T) {
	t.Parallel()

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), b.file)
			s := b.factory(t, path)
			t.Cleanup(func() { _ = s.Close() })

			require.NoError(t, s.Set(ctx, StreamPerson, ts("2024-01-01T10:00:00Z")))
			require.NoError(t, s.Commit(ctx, Watermarks{StreamGenre: ts("2024-01-02T10:00:00Z")}))
			require.NoError(t, s.SetRunState(ctx, RunStateStopped))

			cp, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, ts("2024-01-01T10:00:00Z"), cp.Watermarks.Get(StreamPerson))
			assert.Equal(t, ts("2024-01-02T10:00:00Z"), cp.Watermarks.Get(StreamGenre))
			assert.True(t, cp.Watermarks.Get(StreamFilmwork).IsZero())
			assert.Equal(t, RunStateStopped, cp.RunState)
			require.NotNil(t, cp.LastCommitAt)

			// a second store on the same record sees everything
			other := b.factory(t, path)
			t.Cleanup(func() { _ = other.Close() })
			reloaded, err := other.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, cp.Watermarks, reloaded.Watermarks)
		})
	}
}

func TestStore_WatermarksNeverMoveBackwards(t *testing.T) {
	t.Parallel()

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := b.factory(t, filepath.Join(t.TempDir(), b.file))
			t.Cleanup(func() { _ = s.Close() })

			later := ts("2024-03-01T00:00:00Z")
			earlier := ts("2024-02-01T00:00:00Z")

			require.NoError(t, s.Commit(ctx, Watermarks{StreamFilmwork: later}))
			require.NoError(t, s.Commit(ctx, Watermarks{StreamFilmwork: earlier}))

			wm, err := s.Get(ctx, StreamFilmwork)
			require.NoError(t, err)
			assert.Equal(t, later, wm)
		})
	}
}

func TestStore_AcquireRunGuard(t *testing.T) {
	t.Parallel()

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), b.file)

			first := b.factory(t, path)
			t.Cleanup(func() { _ = first.Close() })
			second := b.factory(t, path)
			t.Cleanup(func() { _ = second.Close() })

			require.NoError(t, first.AcquireRun(ctx, "first"))

			err := second.AcquireRun(ctx, "second")
			require.ErrorIs(t, err, ErrAlreadyRunning)

			cp, err := second.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, RunStateRunning, cp.RunState)
			assert.Equal(t, "first", cp.Owner, "refused run must not touch the record")

			require.NoError(t, first.ReleaseRun(ctx, RunStateIdle))
			require.NoError(t, second.AcquireRun(ctx, "second"))

			cp, err = second.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "second", cp.Owner)
			require.NoError(t, second.ReleaseRun(ctx, RunStateStopped))

			cp, err = first.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, RunStateStopped, cp.RunState)
			assert.Empty(t, cp.Owner)
		})
	}
}

func TestStore_AcquireRunReclaimsStaleState(t *testing.T) {
	t.Parallel()

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), b.file)

			// a process that crashed leaves running behind without holding the guard
			crashed := b.factory(t, path)
			require.NoError(t, crashed.SetRunState(ctx, RunStateRunning))
			require.NoError(t, crashed.Close())

			s := b.factory(t, path)
			t.Cleanup(func() { _ = s.Close() })
			require.NoError(t, s.AcquireRun(ctx, "survivor"))

			cp, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, RunStateRunning, cp.RunState)
			assert.Equal(t, "survivor", cp.Owner)
		})
	}
}

func TestStore_CloseDropsRunGuard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.AcquireRun(ctx, "owner"))

	probe := flock.New(path + RunLockSuffix)
	locked, err := probe.TryLock()
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, s.Close())

	locked, err = probe.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, probe.Unlock())
}

func TestFileStore_ConcurrentCommits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	base := ts("2024-01-01T00:00:00Z")
	var wg sync.WaitGroup
	for i, stream := range Streams {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, stream, base.Add(time.Duration(i+1)*time.Hour)))
		}()
	}
	wg.Wait()

	cp, err := s.Load(ctx)
	require.NoError(t, err)
	for i, stream := range Streams {
		assert.Equal(t, base.Add(time.Duration(i+1)*time.Hour), cp.Watermarks.Get(stream))
	}
}

func TestFileStore_CorruptRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Load(context.Background())
	require.Error(t, err)

	err = s.Commit(context.Background(), Watermarks{StreamGenre: ts("2024-01-01T00:00:00Z")})
	require.Error(t, err)
}

func TestNewStore_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := NewStore(context.Background(), Backend("redis"), "state")
	require.Error(t, err)
}

func TestWatermarks_Merge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		base  Watermarks
		other Watermarks
		want  Watermarks
	}{
		{
			name:  "nil base",
			base:  nil,
			other: Watermarks{StreamPerson: ts("2024-01-01T00:00:00Z")},
			want:  Watermarks{StreamPerson: ts("2024-01-01T00:00:00Z")},
		},
		{
			name:  "later value wins",
			base:  Watermarks{StreamPerson: ts("2024-01-02T00:00:00Z")},
			other: Watermarks{StreamPerson: ts("2024-01-01T00:00:00Z")},
			want:  Watermarks{StreamPerson: ts("2024-01-02T00:00:00Z")},
		},
		{
			name:  "untouched streams are kept",
			base:  Watermarks{StreamGenre: ts("2024-01-02T00:00:00Z")},
			other: Watermarks{StreamFilmwork: ts("2024-01-03T00:00:00Z")},
			want: Watermarks{
				StreamGenre:    ts("2024-01-02T00:00:00Z"),
				StreamFilmwork: ts("2024-01-03T00:00:00Z"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.base.Merge(tt.other))
		})
	}
}
