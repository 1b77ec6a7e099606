package scorm

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limitKind int

const (
	limitAPICalls limitKind = iota
	limitSetValues
	limitCommits
)

// limiterIdle is how long an untouched bucket set is kept. Buckets refill completely within a
// minute, so dropping older ones does not change any decision.
const limiterIdle = time.Minute

type sessionLimiters struct {
	buckets  map[limitKind]*rate.Limiter
	lastUsed time.Time
}

// limiterSet keeps per-minute token buckets for every live session.
type limiterSet struct {
	mu        sync.Mutex
	perMin    map[limitKind]int
	sessions  map[Key]*sessionLimiters
	lastPrune time.Time
	now       func() time.Time
}

func newLimiterSet(opts Options) *limiterSet {
	return &limiterSet{
		perMin: map[limitKind]int{
			limitAPICalls:  opts.APICallsPerMinute,
			limitSetValues: opts.SetValuesPerMinute,
			limitCommits:   opts.CommitsPerMinute,
		},
		sessions: make(map[Key]*sessionLimiters),
		now:      time.Now,
	}
}

func (ls *limiterSet) allow(key Key, kind limitKind) bool {
	n := ls.perMin[kind]
	if n <= 0 {
		return true
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	now := ls.now()
	ls.pruneLocked(now)

	sl, ok := ls.sessions[key]
	if !ok {
		sl = &sessionLimiters{buckets: make(map[limitKind]*rate.Limiter)}
		ls.sessions[key] = sl
	}
	sl.lastUsed = now
	lim, ok := sl.buckets[kind]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
		sl.buckets[kind] = lim
	}
	return lim.AllowN(now, 1)
}

// pruneLocked drops idle sessions, at most once per limiterIdle.
func (ls *limiterSet) pruneLocked(now time.Time) {
	if now.Sub(ls.lastPrune) < limiterIdle {
		return
	}
	ls.lastPrune = now
	for key, sl := range ls.sessions {
		if now.Sub(sl.lastUsed) >= limiterIdle {
			delete(ls.sessions, key)
		}
	}
}

func (ls *limiterSet) remove(key Key) {
	ls.mu.Lock()
	delete(ls.sessions, key)
	ls.mu.Unlock()
}

func (ls *limiterSet) size() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.sessions)
}
