package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type AnalyticsRepository struct {
	db core.DBExecutor
}

var _ scorm.AnalyticsRepository = (*AnalyticsRepository)(nil)

func NewAnalyticsRepository(db core.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (repo *AnalyticsRepository) RecordEvent(ctx context.Context, evt scorm.AnalyticsEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	data := evt.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding event data")
	}

	q := `INSERT INTO scorm_analytics
	(id, user_id, package_id, sco_id, enrollment_id, event_type, event_data, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = repo.db.ExecContext(ctx, q,
		evt.ID, evt.UserID, evt.PackageID, evt.SCOID, evt.EnrollmentID, evt.Type, string(b), evt.DurationMs, evt.CreatedAt,
	)
	return errors.Wrap(err, "inserting scorm_analytics")
}
