package consumer

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/config"
	"github.com/wan-elmus/AutiCare/internal/repository"
)

func TestUserIDFromTopic(t *testing.T) {
	tests := []struct {
		topic   string
		want    int64
		wantErr bool
	}{
		{"auticare/sensor/42", 42, false},
		{"auticare/sensor/1", 1, false},
		{"auticare/sensor/", 0, true},
		{"auticare/sensor/abc", 0, true},
		{"nosegments", 0, true},
	}

	for _, tt := range tests {
		got, err := userIDFromTopic(tt.topic)
		if tt.wantErr {
			assert.Error(t, err, tt.topic)
			continue
		}
		require.NoError(t, err, tt.topic)
		assert.Equal(t, tt.want, got, tt.topic)
	}
}

func setupConsumer(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *MQTTConsumer) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	c := NewMQTTConsumer(
		&config.Config{},
		nil,
		repository.NewSensorDataRepository(db, logger),
		repository.NewUsersRepository(db, logger),
		logger,
	)
	return db, mock, c
}

func userRow(id int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "phone", "password_hash", "created_at",
	}).AddRow(id, "jane@example.com", "Jane", "Doe", "+254700000001", "hash", time.Now())
}

func TestProcessFrame_StoresSample(t *testing.T) {
	db, mock, c := setupConsumer(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id, email`).
		WithArgs(int64(42)).
		WillReturnRows(userRow(42))
	mock.ExpectQuery(`INSERT INTO sensor_data`).
		WithArgs(int64(42), sqlmock.AnyArg(), 2.32, 88.28, 38.7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	frame := &sensorFrame{GSR: 2.32, HeartRate: 88.28, Temperature: 38.7}
	err := c.processFrame(context.Background(), 42, frame)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessFrame_UnknownUserDropped(t *testing.T) {
	db, mock, c := setupConsumer(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id, email`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	frame := &sensorFrame{GSR: 2.32, HeartRate: 88.28, Temperature: 38.7}
	err := c.processFrame(context.Background(), 99, frame)

	// 未知用户丢弃，不算错误，也不落库
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	db, _, c := setupConsumer(t)
	defer db.Close()

	err := c.handleMessage("auticare/sensor/42", []byte("not json"))
	assert.Error(t, err)
}
