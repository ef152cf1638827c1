package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// TimetableCatalogRepository stores the single latest-wins snapshot of
// imported roadmap/rooms/electives/cohort/teacher-preference data as one
// JSON document.
type TimetableCatalogRepository struct {
	db *sqlx.DB
}

// NewTimetableCatalogRepository constructs the repository.
func NewTimetableCatalogRepository(db *sqlx.DB) *TimetableCatalogRepository {
	return &TimetableCatalogRepository{db: db}
}

// Get loads the active catalog snapshot. It returns sql.ErrNoRows if nothing
// has been imported yet.
func (r *TimetableCatalogRepository) Get(ctx context.Context) (*models.TimetableCatalog, error) {
	const query = `SELECT id, data, updated_at FROM timetable_catalogs WHERE id = $1`
	var catalog models.TimetableCatalog
	if err := r.db.GetContext(ctx, &catalog, query, models.TimetableCatalogID); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Upsert replaces the active snapshot with data, inserting the single row
// the first time it is called.
func (r *TimetableCatalogRepository) Upsert(ctx context.Context, data types.JSONText) error {
	now := time.Now().UTC()
	const query = `
INSERT INTO timetable_catalogs (id, data, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, models.TimetableCatalogID, data, now); err != nil {
		return fmt.Errorf("upsert timetable catalog: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is the catalog-not-imported-yet sentinel.
func (r *TimetableCatalogRepository) IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
