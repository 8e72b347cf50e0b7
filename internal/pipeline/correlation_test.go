package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlayersCouncil/game-analytics/internal/config"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

func p64(v int64) *int64 { return &v }

func testEraRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "starts_on"}).
		AddRow(int64(7), "Foundations", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// One scope blowing up must not abort the batch: the remaining scopes still
// run and the job finishes cleanly.
func TestCorrelationJob_ScopeFailureDoesNotAbortRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, starts_on FROM eras").
		WillReturnRows(testEraRows())
	mock.ExpectQuery("SELECT blueprint, side FROM card_catalog").
		WillReturnRows(pgxmock.NewRows([]string{"blueprint", "side"}))

	// free_peoples scope: the deck index build dies.
	mock.ExpectQuery(`SELECT MIN\(game_id\), MAX\(game_id\), COUNT\(\*\) FROM game_analysis`).
		WithArgs("Expanded", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnError(eris.New("connection reset"))

	// shadow scope still runs: no games, skipped.
	mock.ExpectQuery(`SELECT MIN\(game_id\), MAX\(game_id\), COUNT\(\*\) FROM game_analysis`).
		WithArgs("Expanded", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"min", "max", "count"}).AddRow(nil, nil, int64(0)))

	job := &CorrelationJob{
		Pool:    mock,
		Cfg:     config.CorrelationConfig{MinAppearances: 1, WindowSize: 10000, Parallel: 1},
		Formats: []string{"Expanded"},
	}
	err = job.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Dry run computes the pairs but never journals or writes a row.
func TestCorrelationJob_DryRunWritesNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	starts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, name, starts_on FROM eras").
		WillReturnRows(testEraRows())
	mock.ExpectQuery("SELECT blueprint, side FROM card_catalog").
		WillReturnRows(pgxmock.NewRows([]string{"blueprint", "side"}).
			AddRow("1_1", "shadow").
			AddRow("1_2", "shadow"))

	mock.ExpectQuery(`SELECT MIN\(game_id\), MAX\(game_id\), COUNT\(\*\) FROM game_analysis`).
		WithArgs("Expanded", starts).
		WillReturnRows(pgxmock.NewRows([]string{"min", "max", "count"}).
			AddRow(p64(1), p64(2), int64(2)))
	mock.ExpectQuery(`SELECT gdc.game_id, gdc.player_id, gdc.card_blueprint`).
		WithArgs("Expanded", int64(1), int64(10001), starts).
		WillReturnRows(pgxmock.NewRows([]string{"game_id", "player_id", "card_blueprint"}).
			AddRow(int64(1), "alice", "1_1").
			AddRow(int64(1), "alice", "1_2").
			AddRow(int64(2), "bob", "1_1").
			AddRow(int64(2), "bob", "1_2"))

	job := &CorrelationJob{
		Pool:    mock,
		Cfg:     config.CorrelationConfig{MinAppearances: 1, WindowSize: 10000, Parallel: 1},
		Formats: []string{"Expanded"},
		Sides:   []model.Side{model.SideShadow},
		DryRun:  true,
	}
	err = job.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// An empty eras table is a configuration error, not a silent no-op.
func TestCorrelationJob_NoErasIsFatal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, starts_on FROM eras").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "starts_on"}))

	job := &CorrelationJob{Pool: mock, Formats: []string{"Expanded"}}
	err = job.Run(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
