package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/config"
	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
	mqttcommon "github.com/wan-elmus/AutiCare/pkg/mqtt"
)

// sensorFrame 设备上报的传感器帧
// timestamp 缺省时取服务器接收时间
type sensorFrame struct {
	GSR         float64    `json:"gsr"`
	HeartRate   float64    `json:"heart_rate"`
	Temperature float64    `json:"temperature"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// MQTTConsumer MQTT传感器数据消费者
// 订阅按用户分主题的传感器数据（如 auticare/sensor/42），与HTTP上报走同一入库路径
type MQTTConsumer struct {
	config     *config.Config
	mqttClient *mqttcommon.Client
	sensorRepo *repository.SensorDataRepository
	usersRepo  *repository.UsersRepository
	logger     *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	sensorRepo *repository.SensorDataRepository,
	usersRepo *repository.UsersRepository,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		sensorRepo: sensorRepo,
		usersRepo:  usersRepo,
		logger:     logger,
	}
}

// Start 启动消费者（阻塞直到 ctx 取消）
func (c *MQTTConsumer) Start(ctx context.Context) error {
	topic := c.config.MQTT.SensorTopic
	if topic == "" {
		return fmt.Errorf("sensor MQTT topic not configured")
	}

	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to sensor topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	topic := c.config.MQTT.SensorTopic
	if topic != "" {
		if err := c.mqttClient.Unsubscribe(topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 从主题末段解析用户ID（auticare/sensor/<user_id>）
	userID, err := userIDFromTopic(topic)
	if err != nil {
		return err
	}

	// 2. 解析传感器帧
	var frame sensorFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return fmt.Errorf("failed to unmarshal sensor frame: %w", err)
	}

	return c.processFrame(context.Background(), userID, &frame)
}

// processFrame 处理单条传感器帧
func (c *MQTTConsumer) processFrame(ctx context.Context, userID int64, frame *sensorFrame) error {
	// 1. 校验用户存在（未知用户的数据丢弃）
	if _, err := c.usersRepo.GetUserByID(ctx, userID); err != nil {
		if err == repository.ErrNotFound {
			c.logger.Warn("Sensor data for unknown user, dropping",
				zap.Int64("user_id", userID),
			)
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	ts := time.Now()
	if frame.Timestamp != nil {
		ts = *frame.Timestamp
	}

	// 2. 追加写入原始采样
	sample := &models.SensorData{
		UserID:      userID,
		Timestamp:   ts,
		GSR:         frame.GSR,
		HeartRate:   frame.HeartRate,
		Temperature: frame.Temperature,
	}
	if _, err := c.sensorRepo.InsertSample(ctx, sample); err != nil {
		return fmt.Errorf("failed to store sensor sample: %w", err)
	}

	c.logger.Debug("Stored sensor sample",
		zap.Int64("user_id", userID),
		zap.Float64("gsr", frame.GSR),
		zap.Float64("heart_rate", frame.HeartRate),
		zap.Float64("temperature", frame.Temperature),
	)

	return nil
}

// userIDFromTopic 解析主题末段的用户ID
func userIDFromTopic(topic string) (int64, error) {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return 0, fmt.Errorf("malformed sensor topic: %s", topic)
	}

	userID, err := strconv.ParseInt(topic[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id in topic %s: %w", topic, err)
	}

	return userID, nil
}
