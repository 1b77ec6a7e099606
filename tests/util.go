package testutil

import (
	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
	inmemdb "github.com/fpkuniversity/scorm-runtime/storage/database/inmem"
)

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// SeedSCO adds a launchable SCO to the catalog, in a package of its own declaring standard
// (eg. "SCORM 2004 4th Edition").
func SeedSCO(catalog *inmemdb.CatalogRepository, scoID, standard string) scorm.SCO {
	pkg := scorm.Package{
		ID:       "pkg-" + scoID,
		Title:    "Package " + scoID,
		Standard: scorm.Standard(standard),
		Status:   scorm.PackageReady,
	}
	catalog.AddPackage(pkg)

	sco := scorm.SCO{
		ID:           scoID,
		PackageID:    pkg.ID,
		Identifier:   "item_" + scoID,
		Title:        "SCO " + scoID,
		IsLaunchable: true,
	}
	catalog.AddSCO(sco)
	return sco
}
