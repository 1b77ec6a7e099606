package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

const runtimeColumns = `id, enrollment_id, sco_id, user_id, package_id, standard, entry, cmi_data,
	lesson_status, score_raw, suspend_data, lesson_location, session_start_time, initialized_at,
	last_commit_at, terminated_at, created_at, updated_at`

type RuntimeRepository struct {
	db core.DBExecutor
}

var _ scorm.RuntimeRepository = (*RuntimeRepository)(nil)

func NewRuntimeRepository(db core.DB) *RuntimeRepository {
	return &RuntimeRepository{db: db}
}

func (repo *RuntimeRepository) GetRuntime(ctx context.Context, key scorm.Key) (scorm.RuntimeRecord, error) {
	var rec scorm.RuntimeRecord
	q := `SELECT ` + runtimeColumns + ` FROM scorm_runtime WHERE enrollment_id = $1 AND sco_id = $2`
	if err := repo.db.GetContext(ctx, &rec, q, key.EnrollmentID, key.SCOID); err != nil {
		if err == sql.ErrNoRows {
			return scorm.RuntimeRecord{}, scorm.ErrRuntimeNotFound
		}
		return scorm.RuntimeRecord{}, errors.Wrap(err, "selecting scorm_runtime")
	}
	return rec, nil
}

func (repo *RuntimeRepository) UpsertRuntime(ctx context.Context, rec scorm.RuntimeRecord) (scorm.RuntimeRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	if rec.CMIData == nil {
		rec.CMIData = make(scorm.CMIData)
	}
	rec.TerminatedAt = null.Time{}

	q := `INSERT INTO scorm_runtime (` + runtimeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULL, $16, $17)
	ON CONFLICT (enrollment_id, sco_id) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		package_id = EXCLUDED.package_id,
		standard = EXCLUDED.standard,
		entry = EXCLUDED.entry,
		cmi_data = EXCLUDED.cmi_data,
		lesson_status = EXCLUDED.lesson_status,
		session_start_time = EXCLUDED.session_start_time,
		initialized_at = EXCLUDED.initialized_at,
		terminated_at = NULL,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at`

	row := repo.db.QueryRowxContext(ctx, q,
		rec.ID, rec.EnrollmentID, rec.SCOID, rec.UserID, rec.PackageID, rec.Standard, rec.Entry, rec.CMIData,
		rec.LessonStatus, rec.ScoreRaw, rec.SuspendData, rec.LessonLocation, rec.SessionStartTime, rec.InitializedAt,
		rec.LastCommitAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return scorm.RuntimeRecord{}, errors.Wrap(err, "upserting scorm_runtime")
	}
	return rec, nil
}

func (repo *RuntimeRepository) CommitRuntime(ctx context.Context, key scorm.Key, snap scorm.CommitSnapshot) error {
	var terminatedAt null.Time
	if snap.Terminated {
		terminatedAt = null.TimeFrom(snap.CommittedAt)
	}

	q := `UPDATE scorm_runtime SET
		cmi_data = $3,
		lesson_status = $4,
		score_raw = $5,
		suspend_data = $6,
		lesson_location = $7,
		last_commit_at = $8,
		updated_at = $8,
		terminated_at = COALESCE($9, terminated_at)
	WHERE enrollment_id = $1 AND sco_id = $2`

	res, err := repo.db.ExecContext(ctx, q,
		key.EnrollmentID, key.SCOID, snap.CMIData, snap.LessonStatus, snap.ScoreRaw, snap.SuspendData,
		snap.LessonLocation, snap.CommittedAt, terminatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "updating scorm_runtime")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating scorm_runtime")
	}
	if n == 0 {
		return scorm.ErrRuntimeNotFound
	}
	return nil
}
