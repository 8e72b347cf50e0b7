package era

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestList_DerivesWindows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, starts_on FROM eras").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "starts_on"}).
			AddRow(int64(1), "V1 Release", date(2024, 1, 1)).
			AddRow(int64(2), "V2 Release", date(2024, 6, 15)).
			AddRow(int64(3), "V3 Release", date(2025, 2, 1)))

	eras, err := List(context.Background(), mock)
	require.NoError(t, err)
	require.Len(t, eras, 3)

	// First era ends the day before the second starts.
	require.NotNil(t, eras[0].EndsOn)
	assert.Equal(t, date(2024, 6, 14), *eras[0].EndsOn)
	require.NotNil(t, eras[1].EndsOn)
	assert.Equal(t, date(2025, 1, 31), *eras[1].EndsOn)
	// Latest era is open-ended.
	assert.Nil(t, eras[2].EndsOn)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, starts_on FROM eras").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "starts_on"}))

	_, err = List(context.Background(), mock)
	assert.ErrorIs(t, err, ErrNoEras)
}

func TestByName_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, starts_on FROM eras").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "starts_on"}).
			AddRow(int64(1), "V1 Release", date(2024, 1, 1)).
			AddRow(int64(2), "V2 Release", date(2024, 6, 15)))

	e, err := ByName(context.Background(), mock, "V1 Release")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	require.NotNil(t, e.EndsOn)
	assert.Equal(t, date(2024, 6, 14), *e.EndsOn)
}

func TestByName_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, starts_on FROM eras").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "starts_on"}).
			AddRow(int64(1), "V1 Release", date(2024, 1, 1)))

	_, err = ByName(context.Background(), mock, "V9 Release")
	assert.Error(t, err)
}

func TestAdd(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO eras").
		WithArgs("V4 Release", date(2025, 8, 1)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))

	id, err := Add(context.Background(), mock, "V4 Release", date(2025, 8, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
