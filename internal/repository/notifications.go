package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
)

// NotificationsRepository 通知仓库
type NotificationsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationsRepository 创建通知仓库
func NewNotificationsRepository(db *sql.DB, logger *zap.Logger) *NotificationsRepository {
	return &NotificationsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertTx 在事务内写入通知（与特征/预测同一原子写入）
func (r *NotificationsRepository) InsertTx(ctx context.Context, tx *sql.Tx, n *models.Notification) (int64, error) {
	query := `
		INSERT INTO notifications (user_id, prediction_id, level, message, recommendation, timestamp, dismissed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id
	`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		n.UserID,
		n.PredictionID,
		n.Level,
		n.Message,
		n.Recommendation,
		n.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}

	return id, nil
}

// ListUndismissed 取用户最近的未消除通知，按时间倒序，最多 limit 条
func (r *NotificationsRepository) ListUndismissed(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, prediction_id, level, message, recommendation, timestamp, dismissed
		FROM notifications
		WHERE user_id = $1
		  AND dismissed = FALSE
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.PredictionID, &n.Level, &n.Message, &n.Recommendation, &n.Timestamp, &n.Dismissed); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// Dismiss 消除单条通知（幂等：已消除或不存在都不报错，返回是否有变更）
func (r *NotificationsRepository) Dismiss(ctx context.Context, userID, notificationID int64) (bool, error) {
	query := `
		UPDATE notifications
		SET dismissed = TRUE
		WHERE id = $1
		  AND user_id = $2
		  AND dismissed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to dismiss notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// DismissAll 消除用户全部未消除通知（幂等），返回消除条数
func (r *NotificationsRepository) DismissAll(ctx context.Context, userID int64) (int64, error) {
	query := `
		UPDATE notifications
		SET dismissed = TRUE
		WHERE user_id = $1
		  AND dismissed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to dismiss all notifications: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected, nil
}

// Exists 检查通知是否属于该用户（404 与幂等消除的区分）
func (r *NotificationsRepository) Exists(ctx context.Context, userID, notificationID int64) (bool, error) {
	query := `SELECT COUNT(1) FROM notifications WHERE id = $1 AND user_id = $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, notificationID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}

	return count > 0, nil
}
