package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

type CatalogRepository struct {
	db core.DBExecutor
}

var _ scorm.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(db core.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type scoRow struct {
	ID           string `db:"id"`
	PackageID    string `db:"package_id"`
	Identifier   string `db:"identifier"`
	Title        string `db:"title"`
	IsLaunchable bool   `db:"is_launchable"`
	Standard     string `db:"standard"`
	Status       string `db:"package_status"`
}

func (repo *CatalogRepository) GetSCO(ctx context.Context, id string) (scorm.SCO, error) {
	var row scoRow
	q := `SELECT s.id, s.package_id, s.identifier, s.title, s.is_launchable, p.standard, p.status AS package_status
	FROM scorm_scos s
	JOIN scorm_packages p ON p.id = s.package_id
	WHERE s.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return scorm.SCO{}, scorm.ErrSCONotFound
		}
		return scorm.SCO{}, errors.Wrap(err, "selecting scorm_scos")
	}

	return scorm.SCO{
		ID:            row.ID,
		PackageID:     row.PackageID,
		Identifier:    row.Identifier,
		Title:         row.Title,
		IsLaunchable:  row.IsLaunchable,
		Standard:      scorm.ParseStandard(row.Standard),
		PackageStatus: row.Status,
	}, nil
}
