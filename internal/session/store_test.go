package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/service/mapping"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisStore(client, "test", time.Hour), mr
}

func sampleSession(t *testing.T) *Session {
	t.Helper()
	st, err := mapping.Apply(mapping.State{}, mapping.FileLoaded{FileName: "accounts.csv", Headers: []string{"Id", "Name"}})
	require.NoError(t, err)
	return &Session{
		ID:           "s1",
		FileName:     "accounts.csv",
		TotalRecords: 2,
		State:        st,
		Cells:        mapping.ReconcileCells(nil, st.Entries),
	}
}

// stores runs fn against both implementations.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("redis", func(t *testing.T) {
		rs, _ := setupRedisStore(t)
		fn(t, rs)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func TestStoreSessionRoundTrip(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Load(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)

		in := sampleSession(t)
		require.NoError(t, s.Save(ctx, in))

		out, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "accounts.csv", out.FileName)
		assert.Equal(t, []string{"Id", "Name"}, out.State.Headers)
		require.Len(t, out.State.Entries, 2)
		assert.Equal(t, "Name", out.State.Entries[1].SelectedField)
		require.Contains(t, out.Cells, "Id")
		assert.Equal(t, mapping.CellUnmapped, out.Cells["Id"].State)

		out.FileName = "changed.csv"
		again, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "accounts.csv", again.FileName)
	})
}

func TestStoreFileAndProgress(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.LoadFile(ctx, "s1")
		assert.ErrorIs(t, err, ErrNoFile)

		p, err := s.LoadProgress(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.UploadIdle, p.State)

		require.NoError(t, s.SaveFile(ctx, "s1", "Id,Name\n1,Acme\n"))
		require.NoError(t, s.SaveProgress(ctx, "s1", domain.UploadProgress{State: domain.UploadUploading, Total: 10, Processed: 4, Percent: 40}))

		text, err := s.LoadFile(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Id,Name\n1,Acme\n", text)

		p, err = s.LoadProgress(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 40, p.Percent)

		require.NoError(t, s.Save(ctx, sampleSession(t)))
		require.NoError(t, s.Delete(ctx, "s1"))
		_, err = s.Load(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.LoadFile(ctx, "s1")
		assert.ErrorIs(t, err, ErrNoFile)
	})
}

func TestStoreLockIsExclusive(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		unlock, err := s.Lock(ctx, "s1")
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
		defer cancel()
		_, err = s.Lock(short, "s1")
		assert.ErrorIs(t, err, ErrLocked)

		other, err := s.Lock(ctx, "s2")
		require.NoError(t, err)
		other()

		unlock()
		again, err := s.Lock(ctx, "s1")
		require.NoError(t, err)
		again()
	})
}

func TestRedisLockIsExtendedWhileHeld(t *testing.T) {
	rs, mr := setupRedisStore(t)
	rs.lockTTL = 300 * time.Millisecond
	ctx := context.Background()

	unlock, err := rs.Lock(ctx, "s1")
	require.NoError(t, err)
	const key = "lock:test:session:s1"

	mr.FastForward(200 * time.Millisecond)
	assert.Eventually(t, func() bool { return mr.TTL(key) == rs.lockTTL }, time.Second, 10*time.Millisecond)

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestRedisStoreExpiry(t *testing.T) {
	rs, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, rs.SaveFile(ctx, "s1", "Id\n1\n"))
	require.NoError(t, rs.Save(ctx, sampleSession(t)))
	assert.Equal(t, time.Hour, mr.TTL("test:session:s1"))
	assert.Equal(t, time.Hour, mr.TTL("test:file:s1"))

	mr.FastForward(2 * time.Hour)
	_, err := rs.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
