package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
)

// sensorFrame 设备/客户端上报的传感器帧
type sensorFrame struct {
	GSR         float64    `json:"gsr"`
	HeartRate   float64    `json:"heart_rate"`
	Temperature float64    `json:"temperature"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// SensorHandler 传感器数据上报
type SensorHandler struct {
	sensorRepo *repository.SensorDataRepository
	logger     *zap.Logger
}

// NewSensorHandler 创建传感器上报 Handler
func NewSensorHandler(sensorRepo *repository.SensorDataRepository, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{
		sensorRepo: sensorRepo,
		logger:     logger,
	}
}

// Ingest 接收一条传感器采样（HTTP 路径；MQTT 路径见 internal/consumer）
func (h *SensorHandler) Ingest(w http.ResponseWriter, r *http.Request, claims *Claims) {
	ctx := r.Context()

	var frame sensorFrame
	if err := readBodyJSON(r, 1<<20, &frame); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sensor frame")
		return
	}

	ts := time.Now()
	if frame.Timestamp != nil {
		ts = *frame.Timestamp
	}

	sample := &models.SensorData{
		UserID:      claims.UserID,
		Timestamp:   ts,
		GSR:         frame.GSR,
		HeartRate:   frame.HeartRate,
		Temperature: frame.Temperature,
	}
	if _, err := h.sensorRepo.InsertSample(ctx, sample); err != nil {
		h.logger.Error("Failed to store sensor sample",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to store sensor data")
		return
	}

	writeMessage(w, http.StatusCreated, "Sensor data received")
}
