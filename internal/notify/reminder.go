package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DueReminder 到点的剂量提醒（由 repository 按 schedule_time 查出）
type DueReminder struct {
	DosageID   int64
	ChildName  string
	Medication string
	Amount     float64
	Unit       string
	Phone      string
}

// ReminderStore 剂量提醒数据源
type ReminderStore interface {
	// ListDueReminders 查询 schedule_time 等于 hhmm（"15:04" 格式）的激活剂量
	ListDueReminders(ctx context.Context, hhmm string) ([]DueReminder, error)
}

// SMSSender 短信发送接口（生产实现为 SMSClient）
type SMSSender interface {
	Send(to, message, refID string) (string, error)
}

// Reminder 剂量提醒循环：每分钟扫描到点剂量并发送短信提醒
type Reminder struct {
	store    ReminderStore
	sender   SMSSender
	interval time.Duration
	logger   *zap.Logger
}

// NewReminder 创建剂量提醒器
func NewReminder(store ReminderStore, sender SMSSender, interval time.Duration, logger *zap.Logger) *Reminder {
	return &Reminder{
		store:    store,
		sender:   sender,
		interval: interval,
		logger:   logger,
	}
}

// Start 启动提醒循环（阻塞直到 ctx 取消）
func (r *Reminder) Start(ctx context.Context) error {
	r.logger.Info("Dosage reminder started",
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Dosage reminder stopped")
			return nil
		case now := <-ticker.C:
			if err := r.RunOnce(ctx, now); err != nil {
				r.logger.Error("Failed to process dosage reminders",
					zap.Error(err),
				)
				// 继续下一轮，不中断
			}
		}
	}
}

// RunOnce 处理一轮提醒；单条失败只记录日志，不影响其余提醒
func (r *Reminder) RunOnce(ctx context.Context, now time.Time) error {
	hhmm := now.Format("15:04")

	due, err := r.store.ListDueReminders(ctx, hhmm)
	if err != nil {
		return fmt.Errorf("failed to list due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	for _, reminder := range due {
		if reminder.Phone == "" {
			r.logger.Warn("Skipping reminder without caregiver phone",
				zap.Int64("dosage_id", reminder.DosageID),
			)
			continue
		}

		message := fmt.Sprintf("AutiCare reminder: %s is due %.1f%s of %s now.",
			reminder.ChildName, reminder.Amount, reminder.Unit, reminder.Medication)

		if _, err := r.sender.Send(reminder.Phone, message, uuid.NewString()); err != nil {
			r.logger.Error("Failed to send dosage reminder",
				zap.Int64("dosage_id", reminder.DosageID),
				zap.Error(err),
			)
			continue
		}

		r.logger.Info("Dosage reminder sent",
			zap.Int64("dosage_id", reminder.DosageID),
			zap.String("medication", reminder.Medication),
		)
	}

	return nil
}
