package scorm

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

type Standard string

const (
	SCORM12   Standard = "SCORM 1.2"
	SCORM2004 Standard = "SCORM 2004"
)

// ParseStandard maps package metadata to a Standard. Anything that is not a SCORM 2004 edition
// falls back to SCORM 1.2.
func ParseStandard(s string) Standard {
	if strings.Contains(s, "2004") {
		return SCORM2004
	}
	return SCORM12
}

type EntryMode string

const (
	EntryAbInitio EntryMode = "ab-initio"
	EntryResume   EntryMode = "resume"
)

// Actions
const (
	ActionInitialize = "initialize"
	ActionGetValue   = "getvalue"
	ActionSetValue   = "setvalue"
	ActionCommit     = "commit"
	ActionTerminate  = "terminate"
	ActionState      = "state"
)

// Key identifies one learner attempt on one SCO.
type Key struct {
	EnrollmentID string `json:"enrollmentId"`
	SCOID        string `json:"scoId"`
}

func (k Key) String() string {
	return k.EnrollmentID + "_" + k.SCOID
}

// Session is the live runtime state of a Key.
type Session struct {
	Key
	UserID         string    `json:"userId"`
	LearnerName    string    `json:"learnerName,omitempty"`
	PackageID      string    `json:"packageId"`
	Standard       Standard  `json:"standard"`
	EntryMode      EntryMode `json:"entryMode"`
	CMI            CMIData   `json:"cmiData"`
	Initialized    bool      `json:"initialized"`
	Terminated     bool      `json:"terminated"`
	StartedAt      time.Time `json:"sessionStartTime"`
	LastCommitAt   time.Time `json:"lastCommitTime"`
	LastActivityAt time.Time `json:"lastActivity"`
	APICallCount   int       `json:"apiCallCount"`
}

// IsActive reports whether getvalue, setvalue and commit are allowed.
func (s *Session) IsActive() bool {
	return s != nil && s.Initialized && !s.Terminated
}

// PackageReady is the only package status that allows a launch.
const PackageReady = "ready"

type Package struct {
	ID       string
	Title    string
	Standard Standard
	Status   string
}

type SCO struct {
	ID            string
	PackageID     string
	Identifier    string
	Title         string
	IsLaunchable  bool
	Standard      Standard // resolved from the owning package
	PackageStatus string
}

// RuntimeRecord is the persisted snapshot of a Key.
type RuntimeRecord struct {
	ID               string       `json:"id" db:"id"`
	EnrollmentID     string       `json:"enrollment_id" db:"enrollment_id"`
	SCOID            string       `json:"sco_id" db:"sco_id"`
	UserID           string       `json:"user_id" db:"user_id"`
	PackageID        string       `json:"package_id" db:"package_id"`
	Standard         Standard     `json:"standard" db:"standard"`
	Entry            EntryMode    `json:"entry" db:"entry"`
	CMIData          CMIData      `json:"cmi_data" db:"cmi_data"`
	LessonStatus     string       `json:"lesson_status" db:"lesson_status"`
	ScoreRaw         null.Float64 `json:"score_raw" db:"score_raw"`
	SuspendData      null.String  `json:"suspend_data" db:"suspend_data"`
	LessonLocation   null.String  `json:"lesson_location" db:"lesson_location"`
	SessionStartTime time.Time    `json:"session_start_time" db:"session_start_time"`
	InitializedAt    time.Time    `json:"initialized_at" db:"initialized_at"`
	LastCommitAt     null.Time    `json:"last_commit_at" db:"last_commit_at"`
	TerminatedAt     null.Time    `json:"terminated_at" db:"terminated_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

func (r RuntimeRecord) Key() Key {
	return Key{EnrollmentID: r.EnrollmentID, SCOID: r.SCOID}
}

// CommitSnapshot is what commit and terminate write through to storage.
type CommitSnapshot struct {
	CMIData        CMIData
	LessonStatus   string
	ScoreRaw       null.Float64
	SuspendData    null.String
	LessonLocation null.String
	CommittedAt    time.Time
	Terminated     bool
}

// Analytics event types
const (
	EventInitialize = "initialize"
	EventTerminate  = "terminate"
	EventEvict      = "evict"
)

type AnalyticsEvent struct {
	ID           string                 `db:"id"`
	UserID       string                 `db:"user_id"`
	PackageID    string                 `db:"package_id"`
	SCOID        string                 `db:"sco_id"`
	EnrollmentID string                 `db:"enrollment_id"`
	Type         string                 `db:"event_type"`
	Data         map[string]interface{} `db:"-"`
	DurationMs   null.Int64             `db:"duration_ms"`
	CreatedAt    time.Time              `db:"created_at"`
}

type InitResult struct {
	Standard         Standard
	HasExistingState bool
	EntryMode        EntryMode
}

type SessionInfo struct {
	Initialized     bool  `json:"initialized"`
	Terminated      bool  `json:"terminated"`
	APICallCount    int   `json:"apiCallCount"`
	SessionDuration int64 `json:"sessionDuration"` // ms
}

type State struct {
	Runtime    *RuntimeRecord
	Session    *SessionInfo
	CanResume  bool
	LastAccess null.Time
}
