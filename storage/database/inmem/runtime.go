package inmemdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type RuntimeRepository struct {
	db *runtimeTable
}

var _ scorm.RuntimeRepository = (*RuntimeRepository)(nil)

func NewRuntimeRepository(db *DB) *RuntimeRepository {
	return &RuntimeRepository{db: db.runtime}
}

func copyRecord(rec *scorm.RuntimeRecord) scorm.RuntimeRecord {
	c := *rec
	c.CMIData = rec.CMIData.Clone()
	return c
}

func (repo *RuntimeRepository) GetRuntime(_ context.Context, key scorm.Key) (scorm.RuntimeRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[key]; ok {
		return copyRecord(rec), nil
	}
	return scorm.RuntimeRecord{}, scorm.ErrRuntimeNotFound
}

func (repo *RuntimeRepository) UpsertRuntime(_ context.Context, rec scorm.RuntimeRecord) (scorm.RuntimeRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := rec.Key()
	if orig, ok := repo.db.table[key]; ok {
		// summary columns are only written by commits
		rec.ID = orig.ID
		rec.CreatedAt = orig.CreatedAt
		rec.ScoreRaw = orig.ScoreRaw
		rec.SuspendData = orig.SuspendData
		rec.LessonLocation = orig.LessonLocation
		rec.LastCommitAt = orig.LastCommitAt
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	rec.TerminatedAt = null.Time{}

	repo.db.table[key] = &rec
	return copyRecord(&rec), nil
}

func (repo *RuntimeRepository) CommitRuntime(_ context.Context, key scorm.Key, snap scorm.CommitSnapshot) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.table[key]
	if !ok {
		return scorm.ErrRuntimeNotFound
	}
	rec.CMIData = snap.CMIData.Clone()
	rec.LessonStatus = snap.LessonStatus
	rec.ScoreRaw = snap.ScoreRaw
	rec.SuspendData = snap.SuspendData
	rec.LessonLocation = snap.LessonLocation
	rec.LastCommitAt = null.TimeFrom(snap.CommittedAt)
	rec.UpdatedAt = snap.CommittedAt
	if snap.Terminated {
		rec.TerminatedAt = null.TimeFrom(snap.CommittedAt)
	}
	return nil
}
