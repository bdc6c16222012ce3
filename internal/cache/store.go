// Package cache is a hierarchical query cache with optimistic mutations.
// Partitions are keyed by (entity, user, filter); mutation flows snapshot
// the touched partitions, install an optimistic value immediately, then
// replace it with the authoritative result or restore the snapshot exactly.
package cache

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Key addresses one cache partition
type Key struct {
	Entity string
	UserID string
	Filter string
}

func (k Key) String() string {
	return k.Entity + "/" + k.UserID + "/" + k.Filter
}

// FilterHash canonicalizes filter parameters into a stable partition filter
// string, independent of map iteration order.
func FilterHash(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k+"="+v)
	}
	sort.Strings(keys)
	return strings.Join(keys, "&")
}

const tempIDPrefix = "temp-"

// TempID issues a locally-unique identifier for optimistic entries. The
// prefix keeps it out of the server-issued uuid space so replace/rollback
// operations target the right entry unambiguously.
func TempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was issued by TempID
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

type partition struct {
	value      interface{}
	stale      bool
	generation uint64
}

// Snapshot preserves the exact state of a set of partitions, including
// their absence, for later restore.
type Snapshot map[Key]*partition

// Store holds the partitions. Values are treated as immutable once
// installed: mutators build new values rather than editing in place, which
// is what makes snapshot/restore exact.
type Store struct {
	mu    sync.RWMutex
	parts map[Key]*partition
}

// NewStore creates an empty cache store
func NewStore() *Store {
	return &Store{parts: make(map[Key]*partition)}
}

// Get returns the cached value, whether it is fresh (not invalidated), and
// whether the partition exists at all.
func (s *Store) Get(key Key) (value interface{}, fresh bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[key]
	if !ok {
		return nil, false, false
	}
	return p.value, !p.stale, true
}

// Set installs a fresh value and bumps the partition generation, cancelling
// interest in any refetch that started before this write.
func (s *Store) Set(key Key, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *Store) setLocked(key Key, value interface{}) {
	p, ok := s.parts[key]
	if !ok {
		p = &partition{}
		s.parts[key] = p
	}
	p.value = value
	p.stale = false
	p.generation++
}

// Generation returns the partition's current generation (0 if absent).
// Read-through callers record it before fetching and settle the result with
// SetIfCurrent.
func (s *Store) Generation(key Key) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.parts[key]; ok {
		return p.generation
	}
	return 0
}

// SetIfCurrent installs a refetched value only if no mutation touched the
// partition since the caller observed generation. A stale refetch result is
// dropped so it cannot overwrite an in-flight optimistic state.
func (s *Store) SetIfCurrent(key Key, value interface{}, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[key]; ok {
		if p.generation != generation {
			return false
		}
	} else if generation != 0 {
		return false
	}
	s.setLocked(key, value)
	return true
}

// TakeSnapshot captures the exact state of the given partitions
func (s *Store) TakeSnapshot(keys []Key) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(keys))
	for _, key := range keys {
		if p, ok := s.parts[key]; ok {
			copied := *p
			snap[key] = &copied
		} else {
			snap[key] = nil
		}
	}
	return snap
}

// Restore reinstates a snapshot exactly: values, staleness, and absence.
// Generations are bumped so refetches begun mid-mutation are discarded.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, saved := range snap {
		if saved == nil {
			delete(s.parts, key)
			continue
		}
		p, ok := s.parts[key]
		if !ok {
			p = &partition{}
			s.parts[key] = p
		}
		generation := p.generation + 1
		*p = *saved
		p.generation = generation
	}
}

// Invalidate marks partitions as needing refresh. The stale value remains
// readable until the next read-through replaces it.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if p, ok := s.parts[key]; ok {
			p.stale = true
			p.generation++
		}
	}
}

// Scope addresses a set of partitions for invalidation: every partition of
// an entity, or with UserID set, only that user's partitions of it. Mutations
// use scopes for partitions whose filter component is unknowable at write
// time (other pages, other users' views).
type Scope struct {
	Entity string
	UserID string
}

// InvalidateScope marks every partition the scope covers
func (s *Store) InvalidateScope(sc Scope) {
	if sc.UserID == "" {
		s.InvalidateEntity(sc.Entity)
		return
	}
	s.InvalidateUser(sc.Entity, sc.UserID)
}

// InvalidateEntity marks every partition of an entity, across all users and
// filters. Realtime change events land here.
func (s *Store) InvalidateEntity(entity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.parts {
		if key.Entity == entity {
			p.stale = true
			p.generation++
		}
	}
}

// InvalidateUser marks every partition of an entity belonging to one user
func (s *Store) InvalidateUser(entity, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.parts {
		if key.Entity == entity && key.UserID == userID {
			p.stale = true
			p.generation++
		}
	}
}
