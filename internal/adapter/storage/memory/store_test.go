package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dafproject/daf/internal/core/port"
)

func TestStrings(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, port.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	exists, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, port.ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", time.Hour))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	now = now.Add(2 * time.Hour)
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, port.ErrNotFound)
}

func TestExpireExistingKey(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	s.SetClock(func() time.Time { return now })

	require.ErrorIs(t, s.Expire(ctx, "missing", time.Minute), port.ErrNotFound)

	require.NoError(t, s.HSet(ctx, "h", "f", "v"))
	require.NoError(t, s.Expire(ctx, "h", time.Minute))

	now = now.Add(2 * time.Minute)
	fields, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	require.Empty(t, fields)
}

func TestHashes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.HSetAll(ctx, "h", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, s.HSet(ctx, "h", "c", "3"))

	v, err := s.HGet(ctx, "h", "b")
	require.NoError(t, err)
	require.Equal(t, "2", v)

	_, err = s.HGet(ctx, "h", "missing")
	require.ErrorIs(t, err, port.ErrNotFound)

	all, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, all)

	require.NoError(t, s.HDel(ctx, "h", "a"))
	ok, err := s.HExists(ctx, "h", "a")
	require.NoError(t, err)
	require.False(t, ok)

	keys, err := s.HKeys(ctx, "h")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"b", "c"}, keys)
}

func TestListFIFO(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	// RPush tail, LPop head: queue discipline.
	require.NoError(t, s.RPush(ctx, "q", "a"))
	require.NoError(t, s.RPush(ctx, "q", "b"))
	require.NoError(t, s.RPush(ctx, "q", "c"))

	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	for _, want := range []string{"a", "b", "c"} {
		v, err := s.LPop(ctx, "q")
		require.NoError(t, err)
		require.Equal(t, want, v)
	}

	_, err = s.LPop(ctx, "q")
	require.ErrorIs(t, err, port.ErrNotFound)
}

func TestLPushReturnsToHead(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.RPush(ctx, "q", "first"))
	require.NoError(t, s.RPush(ctx, "q", "second"))

	v, err := s.LPop(ctx, "q")
	require.NoError(t, err)
	require.NoError(t, s.LPush(ctx, "q", v))

	got, err := s.LRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, got)
}

func TestLRem(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "a", "c", "a"} {
		require.NoError(t, s.RPush(ctx, "q", v))
	}
	require.NoError(t, s.LRem(ctx, "q", 2, "a"))

	got, err := s.LRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "a"}, got)
}

func TestSets(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.SAdd(ctx, "s", "w1"))
	require.NoError(t, s.SAdd(ctx, "s", "w2"))
	require.NoError(t, s.SAdd(ctx, "s", "w1")) // idempotent

	n, err := s.SCard(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	ok, err := s.SIsMember(ctx, "s", "w1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.SRem(ctx, "s", "w1"))
	members, err := s.SMembers(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, []string{"w2"}, members)
}

func TestCounters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	n, err := s.Incr(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.IncrBy(ctx, "c", 5)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)

	n, err = s.Decr(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	// Counters read back through Get as decimal strings.
	v, err := s.Get(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, "5", v)
}

func TestKeysPattern(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "task:job_1:map:0", "status", "pending"))
	require.NoError(t, s.HSet(ctx, "task:job_1:map:1", "status", "pending"))
	require.NoError(t, s.HSet(ctx, "job:job_1", "status", "pending"))
	require.NoError(t, s.Set(ctx, "stats:total_jobs", "1"))

	keys, err := s.Keys(ctx, "task:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"task:job_1:map:0", "task:job_1:map:1"}, keys)
}

func TestFlushAll(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.RPush(ctx, "q", "a"))
	require.NoError(t, s.FlushAll(ctx))

	keys, err := s.Keys(ctx, "*")
	require.NoError(t, err)
	require.Empty(t, keys)
}
