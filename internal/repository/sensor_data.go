package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
)

// SensorDataRepository 原始传感器数据仓库（只追加）
type SensorDataRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSensorDataRepository 创建传感器数据仓库
func NewSensorDataRepository(db *sql.DB, logger *zap.Logger) *SensorDataRepository {
	return &SensorDataRepository{
		db:     db,
		logger: logger,
	}
}

// InsertSample 追加一条原始采样
func (r *SensorDataRepository) InsertSample(ctx context.Context, sample *models.SensorData) (int64, error) {
	query := `
		INSERT INTO sensor_data (user_id, timestamp, gsr, heart_rate, temperature)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sample.UserID,
		sample.Timestamp,
		sample.GSR,
		sample.HeartRate,
		sample.Temperature,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sensor sample: %w", err)
	}

	return id, nil
}

// GetWindow 取用户在 since 之后的采样，按时间倒序，最多 limit 条
// 只选取管道需要的字段，避免 SELECT *
func (r *SensorDataRepository) GetWindow(ctx context.Context, userID int64, since time.Time, limit int) ([]models.SensorData, error) {
	query := `
		SELECT gsr, heart_rate, temperature, timestamp
		FROM sensor_data
		WHERE user_id = $1
		  AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor window: %w", err)
	}
	defer rows.Close()

	var samples []models.SensorData
	for rows.Next() {
		s := models.SensorData{UserID: userID}
		if err := rows.Scan(&s.GSR, &s.HeartRate, &s.Temperature, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sensor sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor window: %w", err)
	}

	return samples, nil
}
