package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
)

// PredictionsRepository 特征向量与分类结果仓库
// 管道的持久化走事务版本（*Tx 方法），保证特征/预测/通知同属一个原子写入
type PredictionsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPredictionsRepository 创建预测仓库
func NewPredictionsRepository(db *sql.DB, logger *zap.Logger) *PredictionsRepository {
	return &PredictionsRepository{
		db:     db,
		logger: logger,
	}
}

// Begin 开启事务
func (r *PredictionsRepository) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// InsertProcessedTx 在事务内写入特征向量
func (r *PredictionsRepository) InsertProcessedTx(ctx context.Context, tx *sql.Tx, pd *models.ProcessedData) (int64, error) {
	query := `
		INSERT INTO processed_data (user_id, timestamp, gsr_max, gsr_min, gsr_mean, gsr_sd, hrate_mean, temp_avg)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		pd.UserID,
		pd.Timestamp,
		pd.GSRMax,
		pd.GSRMin,
		pd.GSRMean,
		pd.GSRStdDev,
		pd.HRateMean,
		pd.TempAvg,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert processed data: %w", err)
	}

	return id, nil
}

// InsertPredictionTx 在事务内写入分类结果
func (r *PredictionsRepository) InsertPredictionTx(ctx context.Context, tx *sql.Tx, p *models.Prediction) (int64, error) {
	query := `
		INSERT INTO predictions (user_id, timestamp, stress_level, inference_time_ms, processed_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		p.UserID,
		p.Timestamp,
		p.StressLevel,
		p.InferenceTime.Milliseconds(),
		p.ProcessedID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	return id, nil
}

// GetLatestPrediction 取用户最近一次分类结果（/api/predict 的 DB 回退路径）
func (r *PredictionsRepository) GetLatestPrediction(ctx context.Context, userID int64) (*models.Prediction, error) {
	query := `
		SELECT id, user_id, timestamp, stress_level, inference_time_ms, processed_id
		FROM predictions
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var p models.Prediction
	var inferenceMs int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.Timestamp,
		&p.StressLevel,
		&inferenceMs,
		&p.ProcessedID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest prediction: %w", err)
	}
	p.InferenceTime = time.Duration(inferenceMs) * time.Millisecond

	return &p, nil
}

// HistoryRow 历史查询行（特征 + 分类结果）
type HistoryRow struct {
	Timestamp   time.Time `json:"timestamp"`
	GSRMean     float64   `json:"gsr"`
	HRateMean   float64   `json:"heart_rate"`
	TempAvg     float64   `json:"temperature"`
	StressLevel int       `json:"stress_level"`
}

// ListHistory 取用户在 since 之后的历史读数（特征联预测，按时间倒序）
func (r *PredictionsRepository) ListHistory(ctx context.Context, userID int64, since time.Time) ([]HistoryRow, error) {
	query := `
		SELECT pd.timestamp, pd.gsr_mean, pd.hrate_mean, pd.temp_avg, p.stress_level
		FROM predictions p
		JOIN processed_data pd ON pd.id = p.processed_id
		WHERE p.user_id = $1
		  AND p.timestamp >= $2
		ORDER BY p.timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []HistoryRow
	for rows.Next() {
		var row HistoryRow
		if err := rows.Scan(&row.Timestamp, &row.GSRMean, &row.HRateMean, &row.TempAvg, &row.StressLevel); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return history, nil
}
