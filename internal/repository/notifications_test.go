package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
)

func testNotification(ts time.Time) models.Notification {
	return models.Notification{
		UserID:         1,
		PredictionID:   12,
		Level:          "high",
		Message:        "msg",
		Recommendation: "rec",
		Timestamp:      ts,
	}
}

func setupMockNotificationsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *NotificationsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewNotificationsRepository(db, logger)

	return db, mock, repo
}

func TestListUndismissed_Success(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	ts := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "prediction_id", "level", "message", "recommendation", "timestamp", "dismissed",
	}).
		AddRow(2, 1, 12, "high", "High Stress Detected: Stress level at 3", "Notify the caregiver immediately...", ts, false).
		AddRow(1, 1, 11, "slight", "Slight Stress Detected: Stress level at 2", "Encourage calm activities...", ts.Add(-5*time.Minute), false)

	mock.ExpectQuery(`SELECT\s+id, user_id, prediction_id`).
		WithArgs(int64(1), 8).
		WillReturnRows(rows)

	notifications, err := repo.ListUndismissed(context.Background(), 1, 8)

	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, "high", notifications[0].Level)
	assert.False(t, notifications[0].Dismissed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDismiss_ChangesRow(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE notifications`).
		WithArgs(int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.Dismiss(context.Background(), 1, 7)

	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDismiss_AlreadyDismissedIsNoop(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	// 第二次消除同一条：0 行受影响，但不报错
	mock.ExpectExec(`UPDATE notifications`).
		WithArgs(int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Dismiss(context.Background(), 1, 7)

	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDismissAll_Idempotent(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE notifications`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE notifications`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.DismissAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	affected, err = repo.DismissAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTx_WithinTransaction(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	ts := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(int64(1), int64(12), "high", "msg", "rec", ts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(33))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	n := testNotification(ts)
	id, err := repo.InsertTx(context.Background(), tx, &n)
	require.NoError(t, err)
	assert.Equal(t, int64(33), id)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
