package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type AnalyticsRepository struct {
	db *analyticsTable
}

var _ scorm.AnalyticsRepository = (*AnalyticsRepository)(nil)

func NewAnalyticsRepository(db *DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db.analytics}
}

func (repo *AnalyticsRepository) RecordEvent(_ context.Context, evt scorm.AnalyticsEvent) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	repo.db.events = append(repo.db.events, evt)
	return nil
}

// Events returns the recorded events of one type, in insertion order. An empty typ matches all.
func (repo *AnalyticsRepository) Events(typ string) []scorm.AnalyticsEvent {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]scorm.AnalyticsEvent, 0, len(repo.db.events))
	for _, evt := range repo.db.events {
		if typ == "" || evt.Type == typ {
			res = append(res, evt)
		}
	}
	return res
}
