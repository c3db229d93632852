package models

import (
	"time"
)

// User 监护人账户（对应 users 表）
// Email 是 WebSocket 注册表的主键，数字 ID 做二级索引
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Phone        string    `json:"phone" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Child 被监护儿童（对应 children 表）
type Child struct {
	ID          int64     `json:"id" db:"id"`
	CaregiverID int64     `json:"caregiver_id" db:"caregiver_id"`
	Name        string    `json:"name" db:"name"`
	Age         int       `json:"age" db:"age"`
	Notes       string    `json:"notes" db:"notes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ChildUpdate 儿童信息部分更新（白名单字段，逐项校验后应用）
type ChildUpdate struct {
	Name  *string `json:"name,omitempty"`
	Age   *int    `json:"age,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// Dosage 用药剂量（对应 dosages 表）
type Dosage struct {
	ID           int64     `json:"id" db:"id"`
	ChildID      int64     `json:"child_id" db:"child_id"`
	Medication   string    `json:"medication" db:"medication"`
	Amount       float64   `json:"amount" db:"amount"`
	Unit         string    `json:"unit" db:"unit"`
	ScheduleTime string    `json:"schedule_time" db:"schedule_time"` // "HH:MM" 本地时间
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DosageUpdate 剂量部分更新（白名单字段）
type DosageUpdate struct {
	Medication   *string  `json:"medication,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	ScheduleTime *string  `json:"schedule_time,omitempty"`
	Active       *bool    `json:"active,omitempty"`
}
