package ws

import (
	"time"
)

// 推送帧类型
const (
	TypeSensorData              = "sensor_data"
	TypeNotification            = "notification"
	TypeDismissNotification     = "dismiss_notification"
	TypeDismissAllNotifications = "dismiss_all_notifications"
)

// SensorDataMessage 分类后的读数推送帧
type SensorDataMessage struct {
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	HeartRate   float64   `json:"heart_rate"`
	Temperature float64   `json:"temperature"`
	GSR         float64   `json:"gsr"`
	StressLevel int       `json:"stress_level"`
}

// NotificationPayload 通知推送帧内的数据体
type NotificationPayload struct {
	ID             int64     `json:"id"`
	Level          string    `json:"level"`
	Message        string    `json:"message"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp"`
}

// NotificationMessage 通知推送帧
type NotificationMessage struct {
	Type string              `json:"type"`
	Data NotificationPayload `json:"data"`
}

// DismissMessage 消除事件推送帧（多标签页一致性）
type DismissMessage struct {
	Type string `json:"type"`
	ID   int64  `json:"id,omitempty"`
}
