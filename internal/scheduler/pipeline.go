package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/features"
	"github.com/wan-elmus/AutiCare/internal/metrics"
	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/notify"
	"github.com/wan-elmus/AutiCare/internal/repository"
	"github.com/wan-elmus/AutiCare/internal/store"
	"github.com/wan-elmus/AutiCare/internal/ws"
)

// Classifier 压力分类接口（生产实现为 classifier.Model）
type Classifier interface {
	Predict(fv models.FeatureVector) (int, time.Duration, error)
}

// Pusher 实时推送接口（生产实现为 ws.Manager）
type Pusher interface {
	SendToUserID(userID int64, payload interface{})
}

// LatestCache 最近读数缓存接口（生产实现为 store.ReadingCache）
type LatestCache interface {
	SetLatest(ctx context.Context, reading *store.LatestReading) error
}

// Pipeline 单用户处理管道：取窗口 → 提特征 → 分类 → 事务落库 → 推送
type Pipeline struct {
	sensorRepo        *repository.SensorDataRepository
	predictionsRepo   *repository.PredictionsRepository
	notificationsRepo *repository.NotificationsRepository
	classifier        Classifier
	pusher            Pusher
	cache             LatestCache

	windowDuration time.Duration
	maxSamples     int
	logger         *zap.Logger
}

// NewPipeline 创建处理管道
func NewPipeline(
	sensorRepo *repository.SensorDataRepository,
	predictionsRepo *repository.PredictionsRepository,
	notificationsRepo *repository.NotificationsRepository,
	classifier Classifier,
	pusher Pusher,
	cache LatestCache,
	windowDuration time.Duration,
	maxSamples int,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		sensorRepo:        sensorRepo,
		predictionsRepo:   predictionsRepo,
		notificationsRepo: notificationsRepo,
		classifier:        classifier,
		pusher:            pusher,
		cache:             cache,
		windowDuration:    windowDuration,
		maxSamples:        maxSamples,
		logger:            logger,
	}
}

// ProcessUser 处理一个用户的一轮运行
// 空窗口是正常情况（跳过）；任何落库失败回滚且不推送；推送失败不影响已提交的数据
func (p *Pipeline) ProcessUser(ctx context.Context, userID int64) error {
	start := time.Now()

	// 1. 取采样窗口（向后看 windowDuration，按时间倒序，最多 maxSamples 条）
	since := time.Now().Add(-p.windowDuration)
	samples, err := p.sensorRepo.GetWindow(ctx, userID, since, p.maxSamples)
	if err != nil {
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return fmt.Errorf("failed to fetch sensor window: %w", err)
	}

	// 2. 空窗口：跳过，不是错误
	if len(samples) == 0 {
		p.logger.Debug("No sensor data for user, skipping",
			zap.Int64("user_id", userID),
		)
		metrics.ObservePipelineRun(metrics.OutcomeSkipped)
		return nil
	}

	// 3. 特征提取
	fv, err := features.Extract(samples)
	if err != nil {
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return fmt.Errorf("failed to extract features: %w", err)
	}

	// 4. 分类
	stressLevel, inferenceTime, err := p.classifier.Predict(fv)
	if err != nil {
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return fmt.Errorf("failed to predict stress level: %w", err)
	}
	metrics.ObserveInference(inferenceTime)

	now := time.Now()

	// 5. 先派生通知：未知等级在任何写入之前中止本轮
	notification, err := notify.Derive(userID, 0, stressLevel, now)
	if err != nil {
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return fmt.Errorf("failed to derive notification: %w", err)
	}

	// 6. 原子落库：特征 + 预测 + 通知同一事务
	tx, err := p.predictionsRepo.Begin(ctx)
	if err != nil {
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return err
	}

	processedID, err := p.predictionsRepo.InsertProcessedTx(ctx, tx, &models.ProcessedData{
		UserID:        userID,
		Timestamp:     now,
		FeatureVector: fv,
	})
	if err != nil {
		_ = tx.Rollback()
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return err
	}

	predictionID, err := p.predictionsRepo.InsertPredictionTx(ctx, tx, &models.Prediction{
		UserID:        userID,
		Timestamp:     now,
		StressLevel:   stressLevel,
		InferenceTime: inferenceTime,
		ProcessedID:   processedID,
	})
	if err != nil {
		_ = tx.Rollback()
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return err
	}

	notification.PredictionID = predictionID
	notificationID, err := p.notificationsRepo.InsertTx(ctx, tx, &notification)
	if err != nil {
		_ = tx.Rollback()
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return err
	}
	notification.ID = notificationID

	if err := tx.Commit(); err != nil {
		metrics.ObservePipelineRun(metrics.OutcomeError)
		return fmt.Errorf("failed to commit pipeline writes: %w", err)
	}

	// 7. 提交成功后才推送；推送和缓存失败只记录，不回滚
	latest := samples[0] // 倒序窗口的第一条是最新采样
	p.pusher.SendToUserID(userID, ws.SensorDataMessage{
		Type:        ws.TypeSensorData,
		Timestamp:   now,
		HeartRate:   latest.HeartRate,
		Temperature: latest.Temperature,
		GSR:         latest.GSR,
		StressLevel: stressLevel,
	})
	p.pusher.SendToUserID(userID, ws.NotificationMessage{
		Type: ws.TypeNotification,
		Data: ws.NotificationPayload{
			ID:             notification.ID,
			Level:          notification.Level,
			Message:        notification.Message,
			Recommendation: notification.Recommendation,
			Timestamp:      notification.Timestamp,
		},
	})

	if err := p.cache.SetLatest(ctx, &store.LatestReading{
		UserID:      userID,
		Timestamp:   now,
		GSR:         latest.GSR,
		HeartRate:   latest.HeartRate,
		Temperature: latest.Temperature,
		StressLevel: stressLevel,
	}); err != nil {
		p.logger.Warn("Failed to cache latest reading",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}

	metrics.ObservePipelineRun(metrics.OutcomeSuccess)
	p.logger.Info("Processed user",
		zap.Int64("user_id", userID),
		zap.Int("samples", len(samples)),
		zap.Int("stress_level", stressLevel),
		zap.Duration("inference_time", inferenceTime),
		zap.Duration("processing_time", time.Since(start)),
	)

	return nil
}
