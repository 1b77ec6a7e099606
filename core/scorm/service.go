package scorm

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fpkuniversity/scorm-runtime/core"
)

// Options tunes a Service. Zero limits disable rate limiting, a zero StorageTimeout disables the
// storage deadline.
type Options struct {
	StorageTimeout     time.Duration
	AutoCommitOnEvict  bool
	APICallsPerMinute  int
	SetValuesPerMinute int
	CommitsPerMinute   int
}

func NewOptions(conf *core.Config) Options {
	return Options{
		StorageTimeout:     conf.Runtime.StorageTimeout,
		AutoCommitOnEvict:  conf.Runtime.AutoCommitOnEvict,
		APICallsPerMinute:  conf.Runtime.APICallsPerMinute,
		SetValuesPerMinute: conf.Runtime.SetValuesPerMinute,
		CommitsPerMinute:   conf.Runtime.CommitsPerMinute,
	}
}

// ServiceInterface is the runtime API offered to transports. Every call is made on behalf of
// learner, who must own the session of key.
type ServiceInterface interface {
	Initialize(ctx context.Context, key Key, learner core.Learner) (InitResult, error)
	GetValue(ctx context.Context, key Key, learner core.Learner, elem string) (string, error)
	SetValue(ctx context.Context, key Key, learner core.Learner, elem, value string) error
	Commit(ctx context.Context, key Key, learner core.Learner, batch CMIData) error
	Terminate(ctx context.Context, key Key, learner core.Learner) error
	State(ctx context.Context, key Key, learner core.Learner) (State, error)
}

type Service struct {
	runtime   RuntimeRepository
	catalog   CatalogRepository
	analytics AnalyticsRepository
	sessions  SessionStore
	shared    KeyLocker // nil unless sessions spans processes
	log       core.Logger
	opts      Options

	locks    *keyedMutex
	limiters *limiterSet
	metrics  *metrics
	now      func() time.Time
}

var _ ServiceInterface = (*Service)(nil)

func NewService(
	runtime RuntimeRepository,
	catalog CatalogRepository,
	analytics AnalyticsRepository,
	sessions SessionStore,
	logger core.Logger,
	opts Options,
) *Service {
	svc := &Service{
		runtime:   runtime,
		catalog:   catalog,
		analytics: analytics,
		sessions:  sessions,
		log:       logger,
		opts:      opts,
		locks:     newKeyedMutex(),
		limiters:  newLimiterSet(opts),
		metrics:   newMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	if l, ok := sessions.(KeyLocker); ok {
		svc.shared = l
	}
	if n, ok := sessions.(EvictionNotifier); ok {
		n.SetEvictionHandler(svc.handleEviction)
	}
	return svc
}

func (svc *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.opts.StorageTimeout > 0 {
		return context.WithTimeout(ctx, svc.opts.StorageTimeout)
	}
	return context.WithCancel(ctx)
}

// acquire takes the process lock of key, then the store lock when sessions are shared between
// processes.
func (svc *Service) acquire(ctx context.Context, key Key) (func(), error) {
	unlock := svc.locks.lock(key)
	if svc.shared == nil {
		return unlock, nil
	}
	release, err := svc.shared.Lock(ctx, key)
	if err != nil {
		unlock()
		return nil, errors.Wrap(err, "locking session")
	}
	return func() {
		release()
		unlock()
	}, nil
}

// activeSession returns the live session of key, ErrSessionInactive or ErrAccessDenied.
func (svc *Service) activeSession(ctx context.Context, key Key, learner core.Learner) (*Session, error) {
	sess, ok, err := svc.sessions.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "loading session")
	}
	if !ok || !sess.IsActive() {
		return nil, ErrSessionInactive
	}
	if sess.UserID != learner.ID {
		return nil, ErrAccessDenied
	}
	return sess, nil
}

// loadRuntime returns the persisted record of key, if any.
func (svc *Service) loadRuntime(ctx context.Context, key Key) (RuntimeRecord, bool, error) {
	rec, err := svc.runtime.GetRuntime(ctx, key)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Cause(err) == ErrRuntimeNotFound:
		return RuntimeRecord{}, false, nil
	default:
		return RuntimeRecord{}, false, errors.Wrap(err, "loading runtime state")
	}
}

func (svc *Service) touch(sess *Session) {
	sess.APICallCount++
	sess.LastActivityAt = svc.now()
}

// Initialize starts or resumes the attempt of learner on key.
func (svc *Service) Initialize(ctx context.Context, key Key, learner core.Learner) (res InitResult, err error) {
	defer func() { svc.metrics.observe(ctx, ActionInitialize, err) }()
	ctx, cancel := svc.withDeadline(ctx)
	defer cancel()
	unlock, err := svc.acquire(ctx, key)
	if err != nil {
		return InitResult{}, err
	}
	defer unlock()

	sco, err := svc.catalog.GetSCO(ctx, key.SCOID)
	if err != nil {
		if errors.Cause(err) == ErrSCONotFound {
			return InitResult{}, ErrSCONotFound
		}
		return InitResult{}, errors.Wrap(err, "looking up SCO")
	}

	prev, live, err := svc.sessions.Get(ctx, key)
	if err != nil {
		return InitResult{}, errors.Wrap(err, "loading session")
	}
	live = live && prev.IsActive()
	if live && prev.UserID != learner.ID {
		return InitResult{}, ErrAccessDenied
	}
	rec, found, err := svc.loadRuntime(ctx, key)
	if err != nil {
		return InitResult{}, err
	}
	if found && rec.UserID != "" && rec.UserID != learner.ID {
		return InitResult{}, ErrAccessDenied
	}

	if sco.PackageStatus != PackageReady {
		return InitResult{}, ErrPackageNotReady
	}
	if !sco.IsLaunchable {
		return InitResult{}, ErrSCONotLaunchable
	}

	if live {
		svc.log.Warn("re-initializing a live session, flushing its data", map[string]interface{}{
			"session": key.String(),
			"userId":  prev.UserID,
		})
		if err = svc.runtime.CommitRuntime(ctx, key, prev.CMI.Snapshot(svc.now(), false)); err != nil {
			return InitResult{}, errors.Wrap(err, "flushing previous session")
		}
		if rec, found, err = svc.loadRuntime(ctx, key); err != nil {
			return InitResult{}, err
		}
	}

	res = InitResult{Standard: sco.Standard, EntryMode: EntryAbInitio}
	cmi := make(CMIData)
	if found {
		res.HasExistingState = true
		res.EntryMode = EntryResume
		if rec.CMIData != nil {
			cmi = rec.CMIData.Clone()
		}
	}

	now := svc.now()
	lessonStatus := rec.LessonStatus
	if lessonStatus == "" {
		lessonStatus = defaultLessonStatus
	}
	rec = RuntimeRecord{
		ID:               rec.ID,
		EnrollmentID:     key.EnrollmentID,
		SCOID:            key.SCOID,
		UserID:           learner.ID,
		PackageID:        sco.PackageID,
		Standard:         sco.Standard,
		Entry:            res.EntryMode,
		CMIData:          cmi,
		LessonStatus:     lessonStatus,
		ScoreRaw:         rec.ScoreRaw,
		SuspendData:      rec.SuspendData,
		LessonLocation:   rec.LessonLocation,
		SessionStartTime: now,
		InitializedAt:    now,
		LastCommitAt:     rec.LastCommitAt,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        now,
	}
	if _, err = svc.runtime.UpsertRuntime(ctx, rec); err != nil {
		return InitResult{}, errors.Wrap(err, "saving runtime state")
	}

	sess := &Session{
		Key:            key,
		UserID:         learner.ID,
		LearnerName:    learner.Name,
		PackageID:      sco.PackageID,
		Standard:       sco.Standard,
		EntryMode:      res.EntryMode,
		CMI:            cmi,
		Initialized:    true,
		StartedAt:      now,
		LastActivityAt: now,
		APICallCount:   1,
	}
	if err = svc.sessions.Put(ctx, sess); err != nil {
		return InitResult{}, errors.Wrap(err, "storing session")
	}
	svc.limiters.remove(key)

	svc.recordEvent(ctx, sess, EventInitialize, map[string]interface{}{
		"standard":           sess.Standard,
		"entry_mode":         sess.EntryMode,
		"has_existing_state": res.HasExistingState,
	})
	return res, nil
}

// GetValue reads elem from the live session of key.
func (svc *Service) GetValue(ctx context.Context, key Key, learner core.Learner, elem string) (val string, err error) {
	defer func() { svc.metrics.observe(ctx, ActionGetValue, err) }()
	ctx, cancel := svc.withDeadline(ctx)
	defer cancel()
	unlock, err := svc.acquire(ctx, key)
	if err != nil {
		return "", err
	}
	defer unlock()

	sess, err := svc.activeSession(ctx, key, learner)
	if err != nil {
		return "", err
	}
	if !svc.limiters.allow(key, limitAPICalls) {
		return "", ErrRateLimited
	}

	val = sess.GetValue(elem)
	svc.touch(sess)
	if err = svc.sessions.Put(ctx, sess); err != nil {
		return "", errors.Wrap(err, "storing session")
	}
	return val, nil
}

// SetValue validates and writes elem on the live session of key.
func (svc *Service) SetValue(ctx context.Context, key Key, learner core.Learner, elem, value string) (err error) {
	defer func() { svc.metrics.observe(ctx, ActionSetValue, err) }()
	ctx, cancel := svc.withDeadline(ctx)
	defer cancel()
	unlock, err := svc.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	sess, err := svc.activeSession(ctx, key, learner)
	if err != nil {
		return err
	}
	if !svc.limiters.allow(key, limitSetValues) {
		return ErrSetValueRateLimited
	}
	if err = ValidateElement(sess.Standard, elem, value); err != nil {
		return err
	}

	if sess.CMI == nil {
		sess.CMI = make(CMIData)
	}
	sess.CMI[elem] = value
	svc.touch(sess)
	if err = svc.sessions.Put(ctx, sess); err != nil {
		return errors.Wrap(err, "storing session")
	}
	return nil
}

// Commit persists the live session of key. Values in batch are validated and applied first;
// nothing is applied when one of them is invalid.
func (svc *Service) Commit(ctx context.Context, key Key, learner core.Learner, batch CMIData) (err error) {
	defer func() { svc.metrics.observe(ctx, ActionCommit, err) }()
	ctx, cancel := svc.withDeadline(ctx)
	defer cancel()
	unlock, err := svc.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	sess, err := svc.activeSession(ctx, key, learner)
	if err != nil {
		return err
	}
	if !svc.limiters.allow(key, limitCommits) {
		return ErrCommitRateLimited
	}

	var flds []core.FieldError
	for elem, value := range batch {
		if verr := ValidateElement(sess.Standard, elem, value); verr != nil {
			flds = append(flds, verr.(*core.ValidationError).Fields...)
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}

	cmi := sess.CMI.Clone()
	for elem, value := range batch {
		cmi[elem] = value
	}
	now := svc.now()
	if err = svc.runtime.CommitRuntime(ctx, key, cmi.Snapshot(now, false)); err != nil {
		return errors.Wrap(err, "committing runtime state")
	}

	sess.CMI = cmi
	sess.LastCommitAt = now
	svc.touch(sess)
	if err = svc.sessions.Put(ctx, sess); err != nil {
		return errors.Wrap(err, "storing session")
	}
	return nil
}

// Terminate persists and ends the session of key. The session stays live when the write fails.
func (svc *Service) Terminate(ctx context.Context, key Key, learner core.Learner) (err error) {
	defer func() { svc.metrics.observe(ctx, ActionTerminate, err) }()
	ctx, cancel := svc.withDeadline(ctx)
	defer cancel()
	unlock, err := svc.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	sess, ok, err := svc.sessions.Get(ctx, key)
	if err != nil {
		return errors.Wrap(err, "loading session")
	}
	if !ok || !sess.Initialized {
		return ErrSessionNotInitialized
	}
	if sess.UserID != learner.ID {
		return ErrAccessDenied
	}

	now := svc.now()
	if err = svc.runtime.CommitRuntime(ctx, key, sess.CMI.Snapshot(now, true)); err != nil {
		return errors.Wrap(err, "committing runtime state")
	}
	if err = svc.sessions.Remove(ctx, key); err != nil {
		return errors.Wrap(err, "removing session")
	}
	svc.limiters.remove(key)

	sess.Initialized = false
	sess.Terminated = true
	sess.LastCommitAt = now
	svc.touch(sess)
	svc.recordEvent(ctx, sess, EventTerminate, map[string]interface{}{
		"standard":            sess.Standard,
		"total_api_calls":     sess.APICallCount,
		"session_duration_ms": now.Sub(sess.StartedAt).Milliseconds(),
	})
	return nil
}

// State returns the persisted state of key, along with the live session when there is one.
func (svc *Service) State(ctx context.Context, key Key, learner core.Learner) (st State, err error) {
	defer func() { svc.metrics.observe(ctx, ActionState, err) }()
	ctx, cancel := svc.withDeadline(ctx)
	defer cancel()
	unlock, err := svc.acquire(ctx, key)
	if err != nil {
		return State{}, err
	}
	defer unlock()

	rec, found, err := svc.loadRuntime(ctx, key)
	if err != nil {
		return State{}, err
	}
	if found {
		if rec.UserID != "" && rec.UserID != learner.ID {
			return State{}, ErrAccessDenied
		}
		st.Runtime = &rec
		st.CanResume = !rec.TerminatedAt.Valid
		st.LastAccess = rec.LastCommitAt
	}

	sess, ok, err := svc.sessions.Get(ctx, key)
	if err != nil {
		return State{}, errors.Wrap(err, "loading session")
	}
	if ok && sess.UserID != learner.ID {
		return State{}, ErrAccessDenied
	}
	if ok {
		st.Session = &SessionInfo{
			Initialized:     sess.Initialized,
			Terminated:      sess.Terminated,
			APICallCount:    sess.APICallCount,
			SessionDuration: svc.now().Sub(sess.StartedAt).Milliseconds(),
		}
	}
	return st, nil
}

// handleEviction runs when the session store expires an abandoned session.
func (svc *Service) handleEviction(sess *Session) {
	ctx, cancel := svc.withDeadline(context.Background())
	defer cancel()
	unlock, err := svc.acquire(ctx, sess.Key)
	if err != nil {
		svc.log.Error("could not lock evicted session", err, map[string]interface{}{"session": sess.Key.String()})
		return
	}
	defer unlock()

	svc.metrics.evicted(ctx)
	svc.limiters.remove(sess.Key)

	// a newer session was initialized in the meantime
	if _, ok, err := svc.sessions.Get(ctx, sess.Key); err == nil && ok {
		return
	}

	fields := map[string]interface{}{"session": sess.Key.String(), "userId": sess.UserID}
	if svc.opts.AutoCommitOnEvict && sess.IsActive() {
		if err := svc.runtime.CommitRuntime(ctx, sess.Key, sess.CMI.Snapshot(svc.now(), false)); err != nil {
			svc.log.Error("could not commit evicted session", err, fields)
			return
		}
	}
	svc.log.Info("evicted idle session", fields)

	svc.recordEvent(ctx, sess, EventEvict, map[string]interface{}{
		"standard":        sess.Standard,
		"total_api_calls": sess.APICallCount,
		"auto_committed":  svc.opts.AutoCommitOnEvict,
	})
}

func (svc *Service) recordEvent(ctx context.Context, sess *Session, typ string, data map[string]interface{}) {
	now := svc.now()
	evt := AnalyticsEvent{
		UserID:       sess.UserID,
		PackageID:    sess.PackageID,
		SCOID:        sess.SCOID,
		EnrollmentID: sess.EnrollmentID,
		Type:         typ,
		Data:         data,
		CreatedAt:    now,
	}
	if typ != EventInitialize {
		evt.DurationMs.SetValid(now.Sub(sess.StartedAt).Milliseconds())
	}
	if err := svc.analytics.RecordEvent(ctx, evt); err != nil {
		svc.log.Error("could not record analytics event", err, map[string]interface{}{
			"session": sess.Key.String(),
			"event":   typ,
		})
	}
}
