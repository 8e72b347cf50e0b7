// Package era loads the named time windows that scope which games count
// toward a correlation run.
package era

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

// ErrNoEras indicates the eras table is empty. Processing cannot proceed
// without a scoping window, so callers treat this as fatal.
var ErrNoEras = eris.New("era: no eras defined; create at least one before running the pipeline")

// List returns all eras ordered by start date with their date windows
// derived: each era ends the day before the next one starts, and the latest
// era is open-ended.
func List(ctx context.Context, pool db.Pool) ([]model.Era, error) {
	rows, err := pool.Query(ctx,
		`SELECT id, name, starts_on FROM eras ORDER BY starts_on ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "era: list")
	}
	defer rows.Close()

	var eras []model.Era
	for rows.Next() {
		var e model.Era
		if err := rows.Scan(&e.ID, &e.Name, &e.StartsOn); err != nil {
			return nil, eris.Wrap(err, "era: scan")
		}
		eras = append(eras, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "era: list iterate")
	}
	if len(eras) == 0 {
		return nil, ErrNoEras
	}

	for i := range eras[:len(eras)-1] {
		end := eras[i+1].StartsOn.AddDate(0, 0, -1)
		eras[i].EndsOn = &end
	}
	return eras, nil
}

// ByName returns the era with the given name, window included.
func ByName(ctx context.Context, pool db.Pool, name string) (*model.Era, error) {
	eras, err := List(ctx, pool)
	if err != nil {
		return nil, err
	}
	for i := range eras {
		if eras[i].Name == name {
			return &eras[i], nil
		}
	}
	return nil, eris.Errorf("era: not found: %s", name)
}

// Add inserts a new era and returns its ID.
func Add(ctx context.Context, pool db.Pool, name string, startsOn time.Time) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx,
		`INSERT INTO eras (name, starts_on) VALUES ($1, $2) RETURNING id`,
		name, startsOn,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "era: add %s", name)
	}
	return id, nil
}
