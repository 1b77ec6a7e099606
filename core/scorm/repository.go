package scorm

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrSCONotFound           = errors.New("SCO not found")
	ErrRuntimeNotFound       = errors.New("runtime state not found")
	ErrSessionInactive       = errors.New("Session not initialized or terminated")
	ErrSessionNotInitialized = errors.New("Session not initialized")
	ErrRateLimited           = errors.New("Rate limit exceeded for this session")
	ErrSetValueRateLimited   = errors.New("Rate limit exceeded for SetValue operations")
	ErrCommitRateLimited     = errors.New("Rate limit exceeded for Commit operations")
	ErrAccessDenied          = errors.New("Invalid enrollment or SCO access denied")
	ErrPackageNotReady       = errors.New("Package not ready for launch")
	ErrSCONotLaunchable      = errors.New("SCO is not launchable")
)

type (
	RuntimeRepository interface {
		// GetRuntime returns ErrRuntimeNotFound when nothing was persisted for key.
		GetRuntime(ctx context.Context, key Key) (RuntimeRecord, error)
		// UpsertRuntime creates or replaces the record of rec.Key() and clears its termination.
		UpsertRuntime(ctx context.Context, rec RuntimeRecord) (RuntimeRecord, error)
		CommitRuntime(ctx context.Context, key Key, snap CommitSnapshot) error
	}

	CatalogRepository interface {
		// GetSCO returns ErrSCONotFound for unknown ids.
		GetSCO(ctx context.Context, id string) (SCO, error)
	}

	AnalyticsRepository interface {
		RecordEvent(ctx context.Context, evt AnalyticsEvent) error
	}

	// SessionStore keeps live sessions between requests.
	SessionStore interface {
		Get(ctx context.Context, key Key) (*Session, bool, error)
		Put(ctx context.Context, sess *Session) error
		Remove(ctx context.Context, key Key) error
	}

	// KeyLocker is implemented by stores shared between processes. Lock blocks until key is held
	// or ctx is done; the returned func releases it.
	KeyLocker interface {
		Lock(ctx context.Context, key Key) (func(), error)
	}

	// EvictionNotifier is implemented by stores that expire sessions themselves and can report it.
	EvictionNotifier interface {
		SetEvictionHandler(func(*Session))
	}
)
