package models

import (
	"time"
)

// 通知级别（与 stress_level 的派生映射见 internal/notify）
const (
	LevelNormal = "normal"
	LevelSlight = "slight"
	LevelHigh   = "high"
)

// Notification 压力通知（对应 notifications 表）
// 与 Prediction 一一对应；唯一的修改操作是 dismiss（幂等）
type Notification struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	PredictionID   int64     `json:"prediction_id" db:"prediction_id"`
	Level          string    `json:"level" db:"level"`
	Message        string    `json:"message" db:"message"`
	Recommendation string    `json:"recommendation" db:"recommendation"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Dismissed      bool      `json:"dismissed" db:"dismissed"`
}
