package inmemdb

import (
	"sync"

	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type (
	// DB is a process-local database used by tests and the inmem engine.
	DB struct {
		runtime   *runtimeTable
		catalog   *catalogTable
		analytics *analyticsTable
	}

	runtimeTable struct {
		sync.RWMutex
		table map[scorm.Key]*scorm.RuntimeRecord
	}

	catalogTable struct {
		sync.RWMutex
		packages map[string]*scorm.Package
		scos     map[string]*scorm.SCO
	}

	analyticsTable struct {
		sync.RWMutex
		events []scorm.AnalyticsEvent
	}
)

func Open() *DB {
	return &DB{
		runtime: &runtimeTable{table: make(map[scorm.Key]*scorm.RuntimeRecord)},
		catalog: &catalogTable{
			packages: make(map[string]*scorm.Package),
			scos:     make(map[string]*scorm.SCO),
		},
		analytics: &analyticsTable{},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.runtime.Lock()
	db.runtime.table = make(map[scorm.Key]*scorm.RuntimeRecord)
	db.runtime.Unlock()

	db.catalog.Lock()
	db.catalog.packages = make(map[string]*scorm.Package)
	db.catalog.scos = make(map[string]*scorm.SCO)
	db.catalog.Unlock()

	db.analytics.Lock()
	db.analytics.events = nil
	db.analytics.Unlock()
}
