package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/classifier"
	"github.com/wan-elmus/AutiCare/internal/config"
	"github.com/wan-elmus/AutiCare/internal/consumer"
	"github.com/wan-elmus/AutiCare/internal/httpapi"
	"github.com/wan-elmus/AutiCare/internal/metrics"
	"github.com/wan-elmus/AutiCare/internal/notify"
	"github.com/wan-elmus/AutiCare/internal/repository"
	"github.com/wan-elmus/AutiCare/internal/scheduler"
	"github.com/wan-elmus/AutiCare/internal/store"
	"github.com/wan-elmus/AutiCare/internal/ws"
	"github.com/wan-elmus/AutiCare/pkg/database"
	mqttcommon "github.com/wan-elmus/AutiCare/pkg/mqtt"
)

// Service 监护服务（整合各层）
type Service struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	usersRepo         *repository.UsersRepository
	sensorRepo        *repository.SensorDataRepository
	predictionsRepo   *repository.PredictionsRepository
	notificationsRepo *repository.NotificationsRepository
	childrenRepo      *repository.ChildrenRepository
	dosagesRepo       *repository.DosagesRepository

	model     *classifier.Model
	cache     *store.ReadingCache
	manager   *ws.Manager
	pipeline  *scheduler.Pipeline
	scheduler *scheduler.Scheduler
	reminder  *notify.Reminder

	mqttClient   *mqttcommon.Client
	mqttConsumer *consumer.MQTTConsumer

	httpServer *http.Server
}

// NewService 创建监护服务
// 模型文件缺失或损坏时启动失败：服务的唯一职责就是分类，没有模型不如不起
func NewService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 加载分类模型（启动期加载，失败即退出）
	model, err := classifier.LoadModel(cfg.Model.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load stress model: %w", err)
	}

	// 4. 创建 Repository 层
	usersRepo := repository.NewUsersRepository(db, logger)
	sensorRepo := repository.NewSensorDataRepository(db, logger)
	predictionsRepo := repository.NewPredictionsRepository(db, logger)
	notificationsRepo := repository.NewNotificationsRepository(db, logger)
	childrenRepo := repository.NewChildrenRepository(db, logger)
	dosagesRepo := repository.NewDosagesRepository(db, logger)

	// 5. 缓存与连接注册表
	cache := store.NewReadingCache(redisClient, logger)
	manager := ws.NewManager(cfg.WebSocket.WriteTimeout, cfg.WebSocket.PingInterval, logger)

	// 6. 处理管道与调度器
	pipeline := scheduler.NewPipeline(
		sensorRepo,
		predictionsRepo,
		notificationsRepo,
		model,
		manager,
		cache,
		cfg.Scheduler.WindowDuration,
		cfg.Scheduler.MaxSamples,
		logger,
	)
	sched := scheduler.NewScheduler(
		usersRepo,
		pipeline,
		cfg.Scheduler.ProcessInterval,
		cfg.Scheduler.BatchSize,
		logger,
	)

	// 7. 剂量提醒（SMS 网关可选）
	var reminder *notify.Reminder
	if cfg.SMS.Enabled {
		smsClient := notify.NewSMSClient(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.SenderID, logger)
		reminder = notify.NewReminder(dosagesRepo, smsClient, cfg.SMS.ReminderInterval, logger)
	}

	// 8. MQTT 传感器接入（可选）
	var mqttClient *mqttcommon.Client
	var mqttConsumer *consumer.MQTTConsumer
	if cfg.MQTT.Enabled {
		mqttClient, err = mqttcommon.NewClient(&mqttcommon.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect MQTT: %w", err)
		}
		mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, sensorRepo, usersRepo, logger)
	}

	// 9. 指标注册
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s := &Service{
		config:            cfg,
		db:                db,
		redisClient:       redisClient,
		logger:            logger,
		usersRepo:         usersRepo,
		sensorRepo:        sensorRepo,
		predictionsRepo:   predictionsRepo,
		notificationsRepo: notificationsRepo,
		childrenRepo:      childrenRepo,
		dosagesRepo:       dosagesRepo,
		model:             model,
		cache:             cache,
		manager:           manager,
		pipeline:          pipeline,
		scheduler:         sched,
		reminder:          reminder,
		mqttClient:        mqttClient,
		mqttConsumer:      mqttConsumer,
	}
	s.httpServer = s.buildHTTPServer()

	return s, nil
}

// buildHTTPServer 组装路由与 HTTP 服务
func (s *Service) buildHTTPServer() *http.Server {
	cfg := s.config

	authHandler := httpapi.NewAuthHandler(s.usersRepo, cfg.JWT.Secret, cfg.JWT.Expiry, s.logger)

	router := httpapi.NewRouter(s.logger)
	router.RegisterRoutes(&httpapi.Handlers{
		Auth:          authHandler,
		Sensor:        httpapi.NewSensorHandler(s.sensorRepo, s.logger),
		WS:            httpapi.NewWSHandler(authHandler, s.manager, s.sensorRepo, cfg.WebSocket.ReadTimeout, s.logger),
		Notifications: httpapi.NewNotificationsHandler(s.notificationsRepo, s.manager, s.logger),
		Predict:       httpapi.NewPredictHandler(s.cache, s.predictionsRepo, s.logger),
		History:       httpapi.NewHistoryHandler(s.predictionsRepo, s.logger),
		Children:      httpapi.NewChildrenHandler(s.childrenRepo, s.logger),
		Dosages:       httpapi.NewDosagesHandler(s.dosagesRepo, s.childrenRepo, s.logger),
	})

	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Start 启动服务（阻塞直到 ctx 取消或 HTTP 服务出错）
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting monitoring service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.Bool("mqtt_enabled", s.config.MQTT.Enabled),
		zap.Bool("sms_enabled", s.config.SMS.Enabled),
	)

	// 后台循环：聚合调度、存活探测、剂量提醒、MQTT 接入
	go func() {
		_ = s.scheduler.Start(ctx)
	}()
	go s.manager.PingLoop(ctx)
	if s.reminder != nil {
		go func() {
			_ = s.reminder.Start(ctx)
		}()
	}
	if s.mqttConsumer != nil {
		go func() {
			if err := s.mqttConsumer.Start(ctx); err != nil {
				s.logger.Error("MQTT consumer failed",
					zap.Error(err),
				)
			}
		}()
	}

	// HTTP 服务
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP shutdown failed",
				zap.Error(err),
			)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop 释放连接资源
func (s *Service) Stop() error {
	s.logger.Info("Stopping monitoring service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
