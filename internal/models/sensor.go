package models

import (
	"time"
)

// SensorData 原始传感器采样（对应 sensor_data 表，只追加不修改）
type SensorData struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	GSR         float64   `json:"gsr" db:"gsr"`                 // 皮肤电反应
	HeartRate   float64   `json:"heart_rate" db:"heart_rate"`   // 心率
	Temperature float64   `json:"temperature" db:"temperature"` // 体温
}

// FeatureVector 采样窗口的统计特征
// 顺序契约：模型输入固定为
// [gsr_max, gsr_min, gsr_mean, gsr_sd, hrate_mean, temp_avg]
type FeatureVector struct {
	GSRMax    float64 `json:"gsr_max" db:"gsr_max"`
	GSRMin    float64 `json:"gsr_min" db:"gsr_min"`
	GSRMean   float64 `json:"gsr_mean" db:"gsr_mean"`
	GSRStdDev float64 `json:"gsr_sd" db:"gsr_sd"`
	HRateMean float64 `json:"hrate_mean" db:"hrate_mean"`
	TempAvg   float64 `json:"temp_avg" db:"temp_avg"`
}

// Ordered 返回模型输入顺序的特征值
func (fv FeatureVector) Ordered() [6]float64 {
	return [6]float64{fv.GSRMax, fv.GSRMin, fv.GSRMean, fv.GSRStdDev, fv.HRateMean, fv.TempAvg}
}

// ProcessedData 持久化的特征向量（对应 processed_data 表）
type ProcessedData struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	FeatureVector
}

// Prediction 分类结果（对应 predictions 表，只追加不修改）
type Prediction struct {
	ID            int64         `json:"id" db:"id"`
	UserID        int64         `json:"user_id" db:"user_id"`
	Timestamp     time.Time     `json:"timestamp" db:"timestamp"`
	StressLevel   int           `json:"stress_level" db:"stress_level"` // 0=正常, 1-2=轻度, 3=高度
	InferenceTime time.Duration `json:"inference_time" db:"inference_time"`
	ProcessedID   int64         `json:"processed_id" db:"processed_id"` // 关联的特征向量
}
