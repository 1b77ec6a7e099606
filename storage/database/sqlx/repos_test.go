package sqlxrepos

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

var (
	testKey = scorm.Key{EnrollmentID: "e1", SCOID: "s1"}
	testNow = time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC)
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func runtimeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "enrollment_id", "sco_id", "user_id", "package_id", "standard", "entry", "cmi_data",
		"lesson_status", "score_raw", "suspend_data", "lesson_location", "session_start_time", "initialized_at",
		"last_commit_at", "terminated_at", "created_at", "updated_at",
	})
}

func TestRuntimeRepository_GetRuntime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRuntimeRepository(db)
	q := regexp.QuoteMeta("FROM scorm_runtime WHERE enrollment_id = $1 AND sco_id = $2")

	mock.ExpectQuery(q).WithArgs("e1", "s1").WillReturnRows(runtimeRows().AddRow(
		"rt-1", "e1", "s1", "learner-1", "p1", "SCORM 2004", "resume", `{"cmi.location":"3","cmi.score.raw":85}`,
		"completed", 85.0, nil, "3", testNow, testNow, testNow, nil, testNow, testNow,
	))
	rec, err := repo.GetRuntime(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", rec.ID)
	assert.Equal(t, scorm.SCORM2004, rec.Standard)
	assert.Equal(t, scorm.EntryResume, rec.Entry)
	assert.Equal(t, scorm.CMIData{"cmi.location": "3", "cmi.score.raw": "85"}, rec.CMIData)
	assert.Equal(t, null.Float64From(85), rec.ScoreRaw)
	assert.False(t, rec.SuspendData.Valid)
	assert.Equal(t, null.StringFrom("3"), rec.LessonLocation)
	assert.Equal(t, null.TimeFrom(testNow), rec.LastCommitAt)
	assert.False(t, rec.TerminatedAt.Valid)

	mock.ExpectQuery(q).WithArgs("e1", "s1").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetRuntime(context.Background(), testKey)
	assert.Equal(t, scorm.ErrRuntimeNotFound, err)

	boom := errors.New("boom")
	mock.ExpectQuery(q).WithArgs("e1", "s1").WillReturnError(boom)
	_, err = repo.GetRuntime(context.Background(), testKey)
	assert.Equal(t, boom, errors.Cause(err))
}

func TestRuntimeRepository_UpsertRuntime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRuntimeRepository(db)

	rec := scorm.RuntimeRecord{
		EnrollmentID:     "e1",
		SCOID:            "s1",
		UserID:           "learner-1",
		PackageID:        "p1",
		Standard:         scorm.SCORM12,
		Entry:            scorm.EntryAbInitio,
		LessonStatus:     "incomplete",
		SessionStartTime: testNow,
		InitializedAt:    testNow,
		UpdatedAt:        testNow,
		TerminatedAt:     null.TimeFrom(testNow),
	}
	created := testNow.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO scorm_runtime")).
		WithArgs(sqlmock.AnyArg(), "e1", "s1", "learner-1", "p1", "SCORM 1.2", "ab-initio", "{}",
			"incomplete", nil, nil, nil, testNow, testNow, nil, testNow, testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("rt-1", created))

	got, err := repo.UpsertRuntime(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", got.ID)
	assert.Equal(t, created, got.CreatedAt)
	assert.False(t, got.TerminatedAt.Valid)
	assert.NotNil(t, got.CMIData)
}

func TestRuntimeRepository_CommitRuntime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRuntimeRepository(db)
	q := regexp.QuoteMeta("UPDATE scorm_runtime SET")

	snap := scorm.CMIData{
		scorm.ElemLessonStatus: "passed",
		scorm.ElemScoreRaw12:   "90",
	}.Snapshot(testNow, false)
	mock.ExpectExec(q).
		WithArgs("e1", "s1", `{"cmi.core.lesson_status":"passed","cmi.core.score.raw":"90"}`, "passed", 90.0,
			nil, nil, testNow, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CommitRuntime(context.Background(), testKey, snap))

	snap = scorm.CMIData{}.Snapshot(testNow, true)
	mock.ExpectExec(q).
		WithArgs("e1", "s1", "{}", "incomplete", nil, nil, nil, testNow, testNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, scorm.ErrRuntimeNotFound, repo.CommitRuntime(context.Background(), testKey, snap))

	mock.ExpectExec(q).WillReturnError(errors.New("boom"))
	assert.Error(t, repo.CommitRuntime(context.Background(), testKey, snap))
}

func TestCatalogRepository_GetSCO(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCatalogRepository(db)
	q := regexp.QuoteMeta("FROM scorm_scos s")

	tests := []struct {
		name     string
		standard string
		want     scorm.Standard
	}{
		{name: "2004", standard: "SCORM 2004 4th Edition", want: scorm.SCORM2004},
		{name: "1.2", standard: "SCORM 1.2", want: scorm.SCORM12},
		{name: "unknown", standard: "", want: scorm.SCORM12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectQuery(q).WithArgs("s1").WillReturnRows(
				sqlmock.NewRows([]string{"id", "package_id", "identifier", "title", "is_launchable", "standard", "package_status"}).
					AddRow("s1", "p1", "item_1", "Lesson 1", true, tt.standard, "ready"),
			)
			sco, err := repo.GetSCO(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, "p1", sco.PackageID)
			assert.Equal(t, tt.want, sco.Standard)
			assert.Equal(t, "ready", sco.PackageStatus)
			assert.True(t, sco.IsLaunchable)
		})
	}

	mock.ExpectQuery(q).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err := repo.GetSCO(context.Background(), "nope")
	assert.Equal(t, scorm.ErrSCONotFound, err)
}

func TestAnalyticsRepository_RecordEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scorm_analytics")).
		WithArgs(sqlmock.AnyArg(), "learner-1", "p1", "s1", "e1", scorm.EventTerminate,
			`{"standard":"SCORM 1.2"}`, int64(1500), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordEvent(context.Background(), scorm.AnalyticsEvent{
		UserID:       "learner-1",
		PackageID:    "p1",
		SCOID:        "s1",
		EnrollmentID: "e1",
		Type:         scorm.EventTerminate,
		Data:         map[string]interface{}{"standard": "SCORM 1.2"},
		DurationMs:   null.Int64From(1500),
		CreatedAt:    testNow,
	})
	assert.NoError(t, err)
}
