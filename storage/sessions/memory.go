package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

const (
	defaultTTL           = 2 * time.Hour
	defaultSweepInterval = time.Minute
)

type memoryEntry struct {
	sess      *scorm.Session
	expiredAt time.Time
}

// MemoryStore keeps sessions in process memory. Sessions idle for longer than the TTL are
// expired, either by the sweep routine or lazily when accessed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[scorm.Key]*memoryEntry
	ttl     time.Duration
	onEvict func(*scorm.Session)
	now     func() time.Time

	sweepTicker *time.Ticker
	sweepDone   chan struct{}
	closeOnce   sync.Once
	evicting    sync.WaitGroup
}

var (
	_ scorm.SessionStore     = (*MemoryStore)(nil)
	_ scorm.EvictionNotifier = (*MemoryStore)(nil)
)

// NewMemoryStore starts a store with the given idle ttl. A non-positive sweepInterval disables
// the background sweep, leaving lazy expiry only.
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &MemoryStore{
		entries:   make(map[scorm.Key]*memoryEntry),
		ttl:       ttl,
		now:       time.Now,
		sweepDone: make(chan struct{}),
	}
	if sweepInterval > 0 {
		s.startSweep(sweepInterval)
	}
	return s
}

func (s *MemoryStore) SetEvictionHandler(fn func(*scorm.Session)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

func (s *MemoryStore) isExpired(e *memoryEntry) bool {
	return s.now().After(e.expiredAt)
}

// Get returns a copy of the stored session.
func (s *MemoryStore) Get(_ context.Context, key scorm.Key) (*scorm.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.isExpired(e) {
		s.evictLocked(key, e)
		return nil, false, nil
	}
	return cloneSession(e.sess), true, nil
}

// Put stores a copy of sess and restarts its idle timer.
func (s *MemoryStore) Put(_ context.Context, sess *scorm.Session) error {
	s.mu.Lock()
	s.entries[sess.Key] = &memoryEntry{
		sess:      cloneSession(sess),
		expiredAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key scorm.Key) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked must be called with s.mu held. The handler runs on its own goroutine since it
// usually calls back into the store.
func (s *MemoryStore) evictLocked(key scorm.Key, e *memoryEntry) {
	delete(s.entries, key)
	if s.onEvict != nil {
		s.evicting.Add(1)
		go func(fn func(*scorm.Session), sess *scorm.Session) {
			defer s.evicting.Done()
			fn(sess)
		}(s.onEvict, e.sess)
	}
}

// Sweep expires every idle session.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if s.isExpired(e) {
			s.evictLocked(key, e)
		}
	}
}

func (s *MemoryStore) startSweep(interval time.Duration) {
	s.sweepTicker = time.NewTicker(interval)
	ticker := s.sweepTicker
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.sweepDone:
				return
			}
		}
	}()
}

// Close stops the sweep routine and waits for running eviction handlers.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.sweepDone)
	})
	s.evicting.Wait()
	return nil
}

func cloneSession(sess *scorm.Session) *scorm.Session {
	c := *sess
	c.CMI = sess.CMI.Clone()
	return &c
}
