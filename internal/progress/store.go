package progress

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Rebalancer recomputes a learner's recommended next step after a completion.
// Failures are logged and never fail the completion write.
type Rebalancer interface {
	Rebalance(ctx context.Context, studentID, courseID string) error
}

type cacheKey struct{ student, course, module string }

// Store is the local-first progress state. Writes land in the in-memory cache
// synchronously so access decisions never wait on a network round-trip;
// backend writes happen best-effort and are retried on the next reconcile
// cycle. A successful backend read is authoritative and overwrites the cache.
type Store struct {
	mu    sync.RWMutex
	cache map[cacheKey]Record
	dirty map[cacheKey]struct{}

	rel Repository // UUID-keyed relational target, may be nil
	doc Repository // document target, always present
	reb Rebalancer
	now func() time.Time
}

type StoreOpt func(*Store)

func WithRebalancer(r Rebalancer) StoreOpt { return func(s *Store) { s.reb = r } }

// SetRebalancer attaches the recommender after construction; the recommender
// itself reads snapshots from this store.
func (s *Store) SetRebalancer(r Rebalancer) {
	s.mu.Lock()
	s.reb = r
	s.mu.Unlock()
}
func WithStoreClock(fn func() time.Time) StoreOpt { return func(s *Store) { s.now = fn } }

// NewStore builds a store over the document target and an optional relational
// target. rel may be nil when no Postgres backend is configured.
func NewStore(doc, rel Repository, opts ...StoreOpt) *Store {
	s := &Store{
		cache: map[cacheKey]Record{},
		dirty: map[cacheKey]struct{}{},
		rel:   rel,
		doc:   doc,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upsert applies the change optimistically to the cache, then attempts the
// backend write. The returned record is what the UI should show immediately;
// a backend failure never rolls it back.
func (s *Store) Upsert(ctx context.Context, rec Record) Record {
	k := cacheKey{rec.StudentID, rec.CourseID, rec.ModuleID}

	s.mu.Lock()
	prev, had := s.cache[k]
	if had {
		rec.LockedUntil = carryLockout(prev.LockedUntil, rec.LockedUntil)
	}
	s.cache[k] = rec
	s.dirty[k] = struct{}{}
	wasComplete := had && prev.Completed
	reb := s.reb
	s.mu.Unlock()

	if rec.Completed && !wasComplete && reb != nil {
		if err := reb.Rebalance(ctx, rec.StudentID, rec.CourseID); err != nil {
			log.Printf("progress: rebalance %s/%s: %v", rec.StudentID, rec.CourseID, err)
		}
	}

	s.push(ctx, k, rec)

	s.mu.RLock()
	out := s.cache[k]
	s.mu.RUnlock()
	return out
}

// SetLockout records a penalty window. The window is monotonically
// non-decreasing per key, in cache and in both backends.
func (s *Store) SetLockout(ctx context.Context, studentID, courseID, moduleID string, until time.Time) error {
	k := cacheKey{studentID, courseID, moduleID}

	s.mu.Lock()
	rec, ok := s.cache[k]
	if !ok {
		rec = Record{StudentID: studentID, CourseID: courseID, ModuleID: moduleID}
	}
	rec.LockedUntil = mergeLockout(rec.LockedUntil, until)
	s.cache[k] = rec
	s.dirty[k] = struct{}{}
	s.mu.Unlock()

	if err := s.doc.SetLockout(ctx, studentID, courseID, moduleID, until); err != nil {
		return err
	}
	if s.rel != nil && isUUID(moduleID) {
		if err := s.rel.SetLockout(ctx, studentID, courseID, moduleID, until); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.dirty, k)
	s.mu.Unlock()
	return nil
}

// Snapshot returns the cached view for gate decisions. Never blocks on I/O.
func (s *Store) Snapshot(studentID, courseID string) map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]Record{}
	for k, rec := range s.cache {
		if k.student == studentID && k.course == courseID {
			out[k.module] = rec
		}
	}
	return out
}

// Get returns the cached record for one module, creating nothing.
func (s *Store) Get(studentID, courseID, moduleID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cache[cacheKey{studentID, courseID, moduleID}]
	return rec, ok
}

// Refresh fetches server state and overwrites the cache — server wins on
// read. Dirty (not yet pushed) entries are kept so pending local changes are
// not silently discarded before their reconcile.
func (s *Store) Refresh(ctx context.Context, studentID, courseID string) (map[string]Record, error) {
	recs, err := s.doc.List(ctx, studentID, courseID)
	if err != nil {
		return s.Snapshot(studentID, courseID), err
	}
	s.mu.Lock()
	for _, rec := range recs {
		k := cacheKey{rec.StudentID, rec.CourseID, rec.ModuleID}
		if _, pending := s.dirty[k]; pending {
			continue
		}
		s.cache[k] = rec
	}
	s.mu.Unlock()
	return s.Snapshot(studentID, courseID), nil
}

// Reconcile pushes every dirty entry once. Called from the periodic cycle;
// failures stay dirty for the next round.
func (s *Store) Reconcile(ctx context.Context) {
	s.mu.RLock()
	pending := make([]cacheKey, 0, len(s.dirty))
	for k := range s.dirty {
		pending = append(pending, k)
	}
	s.mu.RUnlock()

	for _, k := range pending {
		s.mu.RLock()
		rec, ok := s.cache[k]
		s.mu.RUnlock()
		if ok {
			s.push(ctx, k, rec)
		}
	}
}

// Run drives opportunistic reconciliation until the context ends.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.Reconcile(ctx)
		}
	}
}

// push writes one record through to the backend targets. The relational
// target is skipped — not failed — when the module id is not UUID-shaped;
// the document target is always attempted.
func (s *Store) push(ctx context.Context, k cacheKey, rec Record) {
	if err := s.doc.Upsert(ctx, rec); err != nil {
		log.Printf("progress: document write %s/%s: %v", rec.StudentID, rec.ModuleID, err)
		return // stays dirty
	}
	if s.rel != nil && isUUID(rec.ModuleID) {
		if err := s.rel.Upsert(ctx, rec); err != nil {
			log.Printf("progress: relational write %s/%s: %v", rec.StudentID, rec.ModuleID, err)
			return
		}
	}
	s.mu.Lock()
	delete(s.dirty, k)
	if cur, ok := s.cache[k]; ok {
		cur.LastSyncedAt = s.now()
		s.cache[k] = cur
	}
	s.mu.Unlock()
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func carryLockout(prev, next *time.Time) *time.Time {
	if prev == nil {
		return next
	}
	if next == nil || prev.After(*next) {
		return prev
	}
	return next
}
