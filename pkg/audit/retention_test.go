package audit

import (
	"context"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gable-pm/gable/pkg/observability"
)

func TestRetentionSweeper_Sweep(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM role_audit_log`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	sweeper := NewRetentionSweeper(NewStore(db), logger, 30, "0 3 * * *")
	sweeper.sweep(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionSweeper_DisabledWithoutRetention(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	sweeper := NewRetentionSweeper(NewStore(db), logger, 0, "")

	require.NoError(t, sweeper.Start())
	assert.Nil(t, sweeper.cron)
	sweeper.Stop()
}

func TestRetentionSweeper_StartStop(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	sweeper := NewRetentionSweeper(NewStore(db), logger, 30, "0 3 * * *")

	require.NoError(t, sweeper.Start())
	require.NotNil(t, sweeper.cron)
	sweeper.Stop()
}
