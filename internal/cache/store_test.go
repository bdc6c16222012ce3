package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterHashIsOrderIndependent(t *testing.T) {
	a := FilterHash(map[string]string{"page": "1", "status": "pending", "search": "glue"})
	b := FilterHash(map[string]string{"search": "glue", "status": "pending", "page": "1"})
	assert.Equal(t, a, b)
	assert.Equal(t, "page=1&search=glue&status=pending", a)
}

func TestFilterHashDropsEmptyParams(t *testing.T) {
	assert.Equal(t, "page=1", FilterHash(map[string]string{"page": "1", "search": ""}))
	assert.Equal(t, "", FilterHash(nil))
}

func TestTempIDRoundTrip(t *testing.T) {
	id := TempID()
	assert.True(t, IsTempID(id))
	assert.NotEqual(t, id, TempID())
	assert.False(t, IsTempID("b5ac0b7c-0000-0000-0000-000000000000"))
}

func TestGetDistinguishesMissStaleAndFresh(t *testing.T) {
	s := NewStore()
	key := Key{Entity: "requests:history", UserID: "u1"}

	_, _, ok := s.Get(key)
	assert.False(t, ok)

	s.Set(key, "v1")
	v, fresh, ok := s.Get(key)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "v1", v)

	s.Invalidate(key)
	v, fresh, ok = s.Get(key)
	require.True(t, ok)
	assert.False(t, fresh, "stale partition still readable but flagged")
	assert.Equal(t, "v1", v, "invalidate keeps the last value")
}

func TestSetIfCurrentDropsStaleRefetch(t *testing.T) {
	s := NewStore()
	key := Key{Entity: "requests:detail", UserID: "u1", Filter: "id=42"}
	s.Set(key, "v1")

	// Reader observes the generation, then a mutation lands before the
	// reader's refetch completes
	gen := s.Generation(key)
	s.Set(key, "optimistic")

	assert.False(t, s.SetIfCurrent(key, "refetched-v1", gen))
	v, _, _ := s.Get(key)
	assert.Equal(t, "optimistic", v)

	// An up-to-date refetch settles normally
	gen = s.Generation(key)
	assert.True(t, s.SetIfCurrent(key, "v2", gen))
	v, fresh, _ := s.Get(key)
	assert.Equal(t, "v2", v)
	assert.True(t, fresh)
}

func TestSetIfCurrentOnAbsentPartition(t *testing.T) {
	s := NewStore()
	key := Key{Entity: "requests:pending", UserID: "u1"}

	// Generation 0 means the reader saw an empty partition; filling it is fine
	assert.True(t, s.SetIfCurrent(key, "v1", 0))

	// But not once someone else has written in between
	s2 := NewStore()
	s2.Set(key, "other")
	assert.False(t, s2.SetIfCurrent(key, "v1", 0))
}

func TestSnapshotRestoreIsExact(t *testing.T) {
	s := NewStore()
	present := Key{Entity: "requests:history", UserID: "u1"}
	staled := Key{Entity: "requests:history", UserID: "u2"}
	absent := Key{Entity: "requests:history", UserID: "u3"}

	s.Set(present, []string{"a", "b"})
	s.Set(staled, "old")
	s.Invalidate(staled)

	snap := s.TakeSnapshot([]Key{present, staled, absent})

	// Mutate everything after the snapshot
	s.Set(present, []string{"temp"})
	s.Set(staled, "temp")
	s.Set(absent, "temp")

	s.Restore(snap)

	v, fresh, ok := s.Get(present)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, []string{"a", "b"}, v)

	v, fresh, ok = s.Get(staled)
	require.True(t, ok)
	assert.False(t, fresh, "staleness flag survives the round trip")
	assert.Equal(t, "old", v)

	_, _, ok = s.Get(absent)
	assert.False(t, ok, "partition absent before the mutation is absent after restore")
}

func TestRestoreBumpsGeneration(t *testing.T) {
	s := NewStore()
	key := Key{Entity: "requests:detail", UserID: "u1"}
	s.Set(key, "v1")

	snap := s.TakeSnapshot([]Key{key})
	gen := s.Generation(key)
	s.Set(key, "optimistic")
	s.Restore(snap)

	// A refetch that started before the mutation must not settle after
	// the rollback
	assert.False(t, s.SetIfCurrent(key, "mid-flight", gen))
	assert.Greater(t, s.Generation(key), gen)
}

func TestInvalidateEntitySpansUsersAndFilters(t *testing.T) {
	s := NewStore()
	k1 := Key{Entity: "requests:history", UserID: "u1", Filter: "page=1"}
	k2 := Key{Entity: "requests:history", UserID: "u2", Filter: "page=2"}
	other := Key{Entity: "requests:pending", UserID: "u1"}
	s.Set(k1, 1)
	s.Set(k2, 2)
	s.Set(other, 3)

	s.InvalidateEntity("requests:history")

	_, fresh, _ := s.Get(k1)
	assert.False(t, fresh)
	_, fresh, _ = s.Get(k2)
	assert.False(t, fresh)
	_, fresh, _ = s.Get(other)
	assert.True(t, fresh)
}

func TestInvalidateUserIsScoped(t *testing.T) {
	s := NewStore()
	mine := Key{Entity: "requests:pending", UserID: "u1"}
	theirs := Key{Entity: "requests:pending", UserID: "u2"}
	s.Set(mine, 1)
	s.Set(theirs, 2)

	s.InvalidateUser("requests:pending", "u1")

	_, fresh, _ := s.Get(mine)
	assert.False(t, fresh)
	_, fresh, _ = s.Get(theirs)
	assert.True(t, fresh)
}
