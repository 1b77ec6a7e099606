package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestMemoryStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(ttl, 0)
	s.now = clock.now
	return s, clock
}

func testSession(enrollment, sco string) *scorm.Session {
	return &scorm.Session{
		Key:         scorm.Key{EnrollmentID: enrollment, SCOID: sco},
		UserID:      "learner-1",
		Standard:    scorm.SCORM12,
		EntryMode:   scorm.EntryAbInitio,
		CMI:         scorm.CMIData{"cmi.core.lesson_location": "page-2"},
		Initialized: true,
	}
}

func TestMemoryStore_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore(time.Hour)
	defer s.Close()

	sess := testSession("e1", "s1")
	require.NoError(t, s.Put(ctx, sess))

	got, ok, err := s.Get(ctx, sess.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sess, got)

	_, ok, err = s.Get(ctx, scorm.Key{EnrollmentID: "e1", SCOID: "s2"})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, sess.Key))
	_, ok, _ = s.Get(ctx, sess.Key)
	assert.False(t, ok)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore(time.Hour)
	defer s.Close()

	sess := testSession("e1", "s1")
	require.NoError(t, s.Put(ctx, sess))
	sess.CMI["cmi.core.lesson_location"] = "changed"

	got, _, _ := s.Get(ctx, sess.Key)
	got.CMI["cmi.suspend_data"] = "x"
	got.APICallCount = 42

	again, _, _ := s.Get(ctx, sess.Key)
	assert.Equal(t, "page-2", again.CMI["cmi.core.lesson_location"])
	assert.NotContains(t, again.CMI, "cmi.suspend_data")
	assert.Zero(t, again.APICallCount)
}

func TestMemoryStore_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore(time.Minute)
	defer s.Close()

	evicted := make(chan *scorm.Session, 1)
	s.SetEvictionHandler(func(sess *scorm.Session) { evicted <- sess })

	sess := testSession("e1", "s1")
	require.NoError(t, s.Put(ctx, sess))

	clock.t = clock.t.Add(30 * time.Second)
	_, ok, _ := s.Get(ctx, sess.Key)
	require.True(t, ok)

	// Put restarts the idle timer
	require.NoError(t, s.Put(ctx, sess))
	clock.t = clock.t.Add(45 * time.Second)
	_, ok, _ = s.Get(ctx, sess.Key)
	require.True(t, ok)

	clock.t = clock.t.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, sess.Key)
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	select {
	case got := <-evicted:
		assert.Equal(t, sess.Key, got.Key)
	case <-time.After(time.Second):
		t.Fatal("eviction handler was not called")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore(time.Minute)
	defer s.Close()

	evicted := make(chan scorm.Key, 2)
	s.SetEvictionHandler(func(sess *scorm.Session) { evicted <- sess.Key })

	require.NoError(t, s.Put(ctx, testSession("e1", "s1")))
	clock.t = clock.t.Add(50 * time.Second)
	require.NoError(t, s.Put(ctx, testSession("e1", "s2")))
	clock.t = clock.t.Add(20 * time.Second)

	s.Sweep()
	assert.Equal(t, 1, s.Len())

	select {
	case key := <-evicted:
		assert.Equal(t, scorm.Key{EnrollmentID: "e1", SCOID: "s1"}, key)
	case <-time.After(time.Second):
		t.Fatal("eviction handler was not called")
	}
}

func TestMemoryStore_SweepRoutine(t *testing.T) {
	s := NewMemoryStore(time.Millisecond, 5*time.Millisecond)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), testSession("e1", "s1")))
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestMemoryStore_CloseWaitsForEvictions(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished bool
	s.SetEvictionHandler(func(*scorm.Session) {
		close(started)
		<-release
		finished = true
	})

	require.NoError(t, s.Put(ctx, testSession("e1", "s1")))
	clock.t = clock.t.Add(2 * time.Minute)
	s.Sweep()
	<-started

	closed := make(chan struct{})
	go func() {
		_ = s.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while an eviction handler was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
		assert.True(t, finished)
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}
