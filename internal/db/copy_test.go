package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := CopyFrom(context.Background(), mock, "card_correlations", []string{"card_a"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Rows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"card_correlations"}, []string{"card_a", "card_b"}).WillReturnResult(2)

	rows := [][]any{{"1_1", "1_2"}, {"1_1", "1_3"}}
	n, err := CopyFrom(context.Background(), mock, "card_correlations", []string{"card_a", "card_b"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"card_correlations"}, []string{"card_a"}).WillReturnError(errors.New("boom"))

	_, err = CopyFrom(context.Background(), mock, "card_correlations", []string{"card_a"}, [][]any{{"1_1"}})
	assert.Error(t, err)
}
