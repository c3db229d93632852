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

func setupMockSensorDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SensorDataRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewSensorDataRepository(db, logger)

	return db, mock, repo
}

func TestInsertSample_Success(t *testing.T) {
	db, mock, repo := setupMockSensorDB(t)
	defer db.Close()

	ts := time.Now()
	mock.ExpectQuery(`INSERT INTO sensor_data`).
		WithArgs(int64(1), ts, 2.32, 84.93, 38.8).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	id, err := repo.InsertSample(context.Background(), &models.SensorData{
		UserID:      1,
		Timestamp:   ts,
		GSR:         2.32,
		HeartRate:   84.93,
		Temperature: 38.8,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWindow_NewestFirst(t *testing.T) {
	db, mock, repo := setupMockSensorDB(t)
	defer db.Close()

	since := time.Now().Add(-5 * time.Minute)
	rows := sqlmock.NewRows([]string{"gsr", "heart_rate", "temperature", "timestamp"}).
		AddRow(2.81, 98.91, 37.9, time.Now()).
		AddRow(1.93, 79.54, 38.7, time.Now().Add(-time.Minute)).
		AddRow(2.32, 84.93, 38.8, time.Now().Add(-2*time.Minute))

	mock.ExpectQuery(`SELECT\s+gsr, heart_rate, temperature, timestamp`).
		WithArgs(int64(1), since, 100).
		WillReturnRows(rows)

	samples, err := repo.GetWindow(context.Background(), 1, since, 100)

	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, 2.81, samples[0].GSR)
	assert.Equal(t, int64(1), samples[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWindow_Empty(t *testing.T) {
	db, mock, repo := setupMockSensorDB(t)
	defer db.Close()

	since := time.Now().Add(-5 * time.Minute)
	mock.ExpectQuery(`SELECT\s+gsr, heart_rate, temperature, timestamp`).
		WithArgs(int64(2), since, 100).
		WillReturnRows(sqlmock.NewRows([]string{"gsr", "heart_rate", "temperature", "timestamp"}))

	samples, err := repo.GetWindow(context.Background(), 2, since, 100)

	require.NoError(t, err)
	assert.Empty(t, samples)
	require.NoError(t, mock.ExpectationsWereMet())
}
