package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
)

// ChildrenRepository 儿童档案仓库
type ChildrenRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChildrenRepository 创建儿童仓库
func NewChildrenRepository(db *sql.DB, logger *zap.Logger) *ChildrenRepository {
	return &ChildrenRepository{
		db:     db,
		logger: logger,
	}
}

// CreateChild 登记儿童
func (r *ChildrenRepository) CreateChild(ctx context.Context, child *models.Child) (int64, error) {
	query := `
		INSERT INTO children (caregiver_id, name, age, notes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		child.CaregiverID,
		child.Name,
		child.Age,
		child.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create child: %w", err)
	}

	return id, nil
}

// ListByCaregiver 取监护人的全部儿童
func (r *ChildrenRepository) ListByCaregiver(ctx context.Context, caregiverID int64) ([]models.Child, error) {
	query := `
		SELECT id, caregiver_id, name, age, notes, created_at
		FROM children
		WHERE caregiver_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		var c models.Child
		var notes sql.NullString
		if err := rows.Scan(&c.ID, &c.CaregiverID, &c.Name, &c.Age, &notes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		c.Notes = notes.String
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate children: %w", err)
	}

	return children, nil
}

// GetChild 取单个儿童（校验归属）
func (r *ChildrenRepository) GetChild(ctx context.Context, caregiverID, childID int64) (*models.Child, error) {
	query := `
		SELECT id, caregiver_id, name, age, notes, created_at
		FROM children
		WHERE id = $1
		  AND caregiver_id = $2
	`

	var c models.Child
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx, query, childID, caregiverID).Scan(
		&c.ID, &c.CaregiverID, &c.Name, &c.Age, &notes, &c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	c.Notes = notes.String

	return &c, nil
}

// UpdateChild 按白名单字段逐项更新（归属校验在 WHERE 内）
func (r *ChildrenRepository) UpdateChild(ctx context.Context, caregiverID, childID int64, update *models.ChildUpdate) error {
	// 先读出当前值，再整体回写：避免动态拼接 SET 子句
	child, err := r.GetChild(ctx, caregiverID, childID)
	if err != nil {
		return err
	}

	if update.Name != nil {
		child.Name = *update.Name
	}
	if update.Age != nil {
		child.Age = *update.Age
	}
	if update.Notes != nil {
		child.Notes = *update.Notes
	}

	query := `
		UPDATE children
		SET name = $1, age = $2, notes = $3
		WHERE id = $4
		  AND caregiver_id = $5
	`

	if _, err := r.db.ExecContext(ctx, query, child.Name, child.Age, child.Notes, childID, caregiverID); err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}

	return nil
}

// DeleteChild 删除儿童（归属校验在 WHERE 内）
func (r *ChildrenRepository) DeleteChild(ctx context.Context, caregiverID, childID int64) error {
	query := `DELETE FROM children WHERE id = $1 AND caregiver_id = $2`

	result, err := r.db.ExecContext(ctx, query, childID, caregiverID)
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
