package scorm

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// CMI element names read or written by the runtime itself.
const (
	// SCORM 1.2
	ElemStudentID      = "cmi.core.student_id"
	ElemStudentName    = "cmi.core.student_name"
	ElemLessonLocation = "cmi.core.lesson_location"
	ElemLessonStatus   = "cmi.core.lesson_status"
	ElemCredit12       = "cmi.core.credit"
	ElemEntry12        = "cmi.core.entry"
	ElemScoreRaw12     = "cmi.core.score.raw"
	ElemScoreMin12     = "cmi.core.score.min"
	ElemScoreMax12     = "cmi.core.score.max"
	ElemTotalTime12    = "cmi.core.total_time"
	ElemSessionTime12  = "cmi.core.session_time"

	// SCORM 2004
	ElemLearnerID        = "cmi.learner_id"
	ElemLearnerName      = "cmi.learner_name"
	ElemLocation         = "cmi.location"
	ElemCompletionStatus = "cmi.completion_status"
	ElemSuccessStatus    = "cmi.success_status"
	ElemCredit2004       = "cmi.credit"
	ElemEntry2004        = "cmi.entry"
	ElemMode             = "cmi.mode"
	ElemScoreScaled      = "cmi.score.scaled"
	ElemScoreRaw2004     = "cmi.score.raw"
	ElemScoreMin2004     = "cmi.score.min"
	ElemScoreMax2004     = "cmi.score.max"
	ElemTotalTime2004    = "cmi.total_time"
	ElemSessionTime2004  = "cmi.session_time"

	// both
	ElemSuspendData = "cmi.suspend_data"
	ElemLaunchData  = "cmi.launch_data"
)

const (
	defaultLearnerName  = "Student"
	defaultLessonStatus = "incomplete"
)

// decimalRegex matches the CMI real number format: no base prefixes, no Inf or NaN.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// parseDecimal parses s when it is a plain decimal number.
func parseDecimal(s string) (float64, bool) {
	if !decimalRegex.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}

// CMIData holds the runtime data model values of a session, keyed by element name.
// Keys that are not part of a standard are kept verbatim.
type CMIData map[string]string

// Clone returns a copy that does not share storage with d.
func (d CMIData) Clone() CMIData {
	c := make(CMIData, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// first returns the first non-empty value among elems.
func (d CMIData) first(elems ...string) string {
	for _, elem := range elems {
		if v := d[elem]; v != "" {
			return v
		}
	}
	return ""
}

// Snapshot derives the summary columns stored alongside the raw data.
func (d CMIData) Snapshot(now time.Time, terminated bool) CommitSnapshot {
	snap := CommitSnapshot{
		CMIData:     d.Clone(),
		CommittedAt: now,
		Terminated:  terminated,
	}

	snap.LessonStatus = d.first(ElemLessonStatus, ElemCompletionStatus)
	if snap.LessonStatus == "" {
		snap.LessonStatus = defaultLessonStatus
	}
	if raw := d.first(ElemScoreRaw12, ElemScoreRaw2004); raw != "" {
		if score, ok := parseDecimal(raw); ok {
			snap.ScoreRaw = null.Float64From(score)
		}
	}
	if data := d[ElemSuspendData]; data != "" {
		snap.SuspendData = null.StringFrom(data)
	}
	if loc := d.first(ElemLessonLocation, ElemLocation); loc != "" {
		snap.LessonLocation = null.StringFrom(loc)
	}
	return snap
}

// UnmarshalJSON accepts string, number and boolean values. Content written by other players
// sometimes stores scores as numbers.
func (d *CMIData) UnmarshalJSON(b []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data := make(CMIData, len(raw))
	for k, v := range raw {
		var val CMIValue
		if err := val.UnmarshalJSON(v); err != nil {
			return errors.Wrapf(err, "decoding %q", k)
		}
		if val.Valid() {
			data[k] = val.String()
		}
	}
	*d = data
	return nil
}

// Value implements driver.Valuer, storing CMIData as a JSON object.
func (d CMIData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *CMIData) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = make(CMIData)
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return errors.Errorf("cannot scan %T into CMIData", src)
	}
}

// CMIValue is a data model value as sent by a content player.
type CMIValue struct {
	str   string
	valid bool
}

func NewCMIValue(s string) CMIValue {
	return CMIValue{str: s, valid: true}
}

func (v CMIValue) String() string { return v.str }
func (v CMIValue) Valid() bool    { return v.valid }

func (v CMIValue) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.str)
}

func (v *CMIValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*v = CMIValue{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = NewCMIValue(s)
	case 't', 'f':
		var bl bool
		if err := json.Unmarshal(b, &bl); err != nil {
			return err
		}
		*v = NewCMIValue(strconv.FormatBool(bl))
	case '{', '[':
		// nested structures are kept as their JSON text
		if !json.Valid(b) {
			return errors.New("invalid JSON value")
		}
		*v = NewCMIValue(string(b))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*v = NewCMIValue(n.String())
	}
	return nil
}

// element describes how a well-known element is read.
type element struct {
	def        string                // returned when nothing is stored
	synthesize func(*Session) string // read-only, derived from the session
}

func constant(s string) func(*Session) string {
	return func(*Session) string { return s }
}

func learnerID(s *Session) string { return s.UserID }

func learnerName(s *Session) string {
	if s.LearnerName != "" {
		return s.LearnerName
	}
	return defaultLearnerName
}

func entry(elem string) func(*Session) string {
	return func(s *Session) string {
		if v := s.CMI[elem]; v != "" {
			return v
		}
		if s.EntryMode != "" {
			return string(s.EntryMode)
		}
		return string(EntryAbInitio)
	}
}

// dataModels lists the well-known elements of each standard.
var dataModels = map[Standard]map[string]element{
	SCORM12: {
		ElemStudentID:      {synthesize: learnerID},
		ElemStudentName:    {synthesize: learnerName},
		ElemCredit12:       {synthesize: constant("credit")},
		ElemEntry12:        {synthesize: entry(ElemEntry12)},
		ElemLessonLocation: {},
		ElemLessonStatus:   {def: "not attempted"},
		ElemScoreRaw12:     {},
		ElemScoreMin12:     {def: "0"},
		ElemScoreMax12:     {def: "100"},
		ElemTotalTime12:    {def: "00:00:00"},
		ElemSessionTime12:  {def: "00:00:00"},
		ElemSuspendData:    {},
		ElemLaunchData:     {},
	},
	SCORM2004: {
		ElemLearnerID:        {synthesize: learnerID},
		ElemLearnerName:      {synthesize: learnerName},
		ElemCredit2004:       {synthesize: constant("credit")},
		ElemMode:             {synthesize: constant("normal")},
		ElemEntry2004:        {synthesize: entry(ElemEntry2004)},
		ElemLocation:         {},
		ElemCompletionStatus: {def: "not attempted"},
		ElemSuccessStatus:    {def: "unknown"},
		ElemScoreScaled:      {},
		ElemScoreRaw2004:     {},
		ElemScoreMin2004:     {},
		ElemScoreMax2004:     {},
		ElemTotalTime2004:    {def: "PT0S"},
		ElemSessionTime2004:  {def: "PT0S"},
		ElemSuspendData:      {},
		ElemLaunchData:       {},
	},
}

// GetValue resolves elem for the session's standard. Unknown elements are looked up verbatim
// and default to an empty string.
func (s *Session) GetValue(elem string) string {
	if el, ok := dataModels[s.Standard][elem]; ok {
		if el.synthesize != nil {
			return el.synthesize(s)
		}
		if v, ok := s.CMI[elem]; ok && v != "" {
			return v
		}
		return el.def
	}
	return s.CMI[elem]
}
