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

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "zip_summaries", []string{"run_id", "zip_code"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zip_summaries"}, []string{"run_id", "zip_code"}).WillReturnResult(2)

	rows := [][]any{{"run1", "90001"}, {"run1", "90002"}}
	n, err := CopyFrom(context.Background(), mock, "zip_summaries", []string{"run_id", "zip_code"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zip_summaries"}, []string{"run_id", "zip_code"}).
		WillReturnError(errors.New("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "zip_summaries", []string{"run_id", "zip_code"}, [][]any{{"run1", "90001"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO zip_summaries")
	assert.NoError(t, mock.ExpectationsWereMet())
}
