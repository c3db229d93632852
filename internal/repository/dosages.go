package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/notify"
)

// DosagesRepository 用药剂量仓库
type DosagesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDosagesRepository 创建剂量仓库
func NewDosagesRepository(db *sql.DB, logger *zap.Logger) *DosagesRepository {
	return &DosagesRepository{
		db:     db,
		logger: logger,
	}
}

// CreateDosage 创建剂量（child 归属校验由调用方完成）
func (r *DosagesRepository) CreateDosage(ctx context.Context, dosage *models.Dosage) (int64, error) {
	query := `
		INSERT INTO dosages (child_id, medication, amount, unit, schedule_time, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		dosage.ChildID,
		dosage.Medication,
		dosage.Amount,
		dosage.Unit,
		dosage.ScheduleTime,
		dosage.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create dosage: %w", err)
	}

	return id, nil
}

// ListByCaregiver 取监护人名下全部儿童的剂量
func (r *DosagesRepository) ListByCaregiver(ctx context.Context, caregiverID int64) ([]models.Dosage, error) {
	query := `
		SELECT d.id, d.child_id, d.medication, d.amount, d.unit, d.schedule_time, d.active, d.created_at
		FROM dosages d
		JOIN children c ON c.id = d.child_id
		WHERE c.caregiver_id = $1
		ORDER BY d.id
	`

	rows, err := r.db.QueryContext(ctx, query, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dosages: %w", err)
	}
	defer rows.Close()

	var dosages []models.Dosage
	for rows.Next() {
		var d models.Dosage
		if err := rows.Scan(&d.ID, &d.ChildID, &d.Medication, &d.Amount, &d.Unit, &d.ScheduleTime, &d.Active, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dosage: %w", err)
		}
		dosages = append(dosages, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dosages: %w", err)
	}

	return dosages, nil
}

// GetDosage 取单条剂量并校验归属（剂量 → 儿童 → 监护人）
func (r *DosagesRepository) GetDosage(ctx context.Context, caregiverID, dosageID int64) (*models.Dosage, error) {
	query := `
		SELECT d.id, d.child_id, d.medication, d.amount, d.unit, d.schedule_time, d.active, d.created_at
		FROM dosages d
		JOIN children c ON c.id = d.child_id
		WHERE d.id = $1
		  AND c.caregiver_id = $2
	`

	var d models.Dosage
	err := r.db.QueryRowContext(ctx, query, dosageID, caregiverID).Scan(
		&d.ID, &d.ChildID, &d.Medication, &d.Amount, &d.Unit, &d.ScheduleTime, &d.Active, &d.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dosage: %w", err)
	}

	return &d, nil
}

// UpdateDosage 按白名单字段逐项更新
func (r *DosagesRepository) UpdateDosage(ctx context.Context, caregiverID, dosageID int64, update *models.DosageUpdate) error {
	dosage, err := r.GetDosage(ctx, caregiverID, dosageID)
	if err != nil {
		return err
	}

	if update.Medication != nil {
		dosage.Medication = *update.Medication
	}
	if update.Amount != nil {
		dosage.Amount = *update.Amount
	}
	if update.Unit != nil {
		dosage.Unit = *update.Unit
	}
	if update.ScheduleTime != nil {
		dosage.ScheduleTime = *update.ScheduleTime
	}
	if update.Active != nil {
		dosage.Active = *update.Active
	}

	query := `
		UPDATE dosages
		SET medication = $1, amount = $2, unit = $3, schedule_time = $4, active = $5
		WHERE id = $6
	`

	if _, err := r.db.ExecContext(ctx, query,
		dosage.Medication, dosage.Amount, dosage.Unit, dosage.ScheduleTime, dosage.Active, dosageID,
	); err != nil {
		return fmt.Errorf("failed to update dosage: %w", err)
	}

	return nil
}

// DeleteDosage 删除剂量（归属校验先行）
func (r *DosagesRepository) DeleteDosage(ctx context.Context, caregiverID, dosageID int64) error {
	if _, err := r.GetDosage(ctx, caregiverID, dosageID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM dosages WHERE id = $1`, dosageID); err != nil {
		return fmt.Errorf("failed to delete dosage: %w", err)
	}

	return nil
}

// ListDueReminders 查询 schedule_time 到点的激活剂量（联监护人手机号）
// 实现 notify.ReminderStore
func (r *DosagesRepository) ListDueReminders(ctx context.Context, hhmm string) ([]notify.DueReminder, error) {
	query := `
		SELECT d.id, c.name, d.medication, d.amount, d.unit, COALESCE(u.phone, '')
		FROM dosages d
		JOIN children c ON c.id = d.child_id
		JOIN users u ON u.id = c.caregiver_id
		WHERE d.active = TRUE
		  AND d.schedule_time = $1
	`

	rows, err := r.db.QueryContext(ctx, query, hhmm)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var due []notify.DueReminder
	for rows.Next() {
		var d notify.DueReminder
		if err := rows.Scan(&d.DosageID, &d.ChildName, &d.Medication, &d.Amount, &d.Unit, &d.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan due reminder: %w", err)
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due reminders: %w", err)
	}

	return due, nil
}
