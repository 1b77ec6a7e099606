package inmemdb

import (
	"context"

	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type CatalogRepository struct {
	db *catalogTable
}

var _ scorm.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db.catalog}
}

func (repo *CatalogRepository) AddPackage(pkg scorm.Package) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.packages[pkg.ID] = &pkg
}

func (repo *CatalogRepository) AddSCO(sco scorm.SCO) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.scos[sco.ID] = &sco
}

func (repo *CatalogRepository) GetSCO(_ context.Context, id string) (scorm.SCO, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sco, ok := repo.db.scos[id]
	if !ok {
		return scorm.SCO{}, scorm.ErrSCONotFound
	}
	res := *sco
	res.Standard = scorm.SCORM12
	if pkg, ok := repo.db.packages[sco.PackageID]; ok {
		res.Standard = scorm.ParseStandard(string(pkg.Standard))
		res.PackageStatus = pkg.Status
	}
	return res, nil
}
