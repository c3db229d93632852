package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/wan-elmus/AutiCare/pkg/database"
)

// Config 监护服务配置
type Config struct {
	Database database.Config

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	MQTT struct {
		Enabled  bool
		Broker   string
		ClientID string
		Username string
		Password string
		// 传感器数据主题（通配符，如 "auticare/sensor/+"）
		SensorTopic string
		QoS         byte
	}

	HTTP struct {
		Addr string
	}

	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// 批量聚合调度配置
	Scheduler struct {
		ProcessInterval time.Duration // 聚合周期，默认 5 分钟
		WindowDuration  time.Duration // 采样窗口（向后看），默认 5 分钟
		MaxSamples      int           // 每用户单次最多取样数，默认 100
		BatchSize       int           // 每批处理用户数，默认 50
	}

	WebSocket struct {
		PingInterval time.Duration // 存活探测周期，默认为读超时的 9/10
		ReadTimeout  time.Duration // 连接读超时，默认 60 秒
		WriteTimeout time.Duration // 单次写超时，默认 10 秒
	}

	SMS struct {
		Enabled  bool
		BaseURL  string
		APIKey   string
		SenderID string
		// 剂量提醒扫描周期，默认 1 分钟
		ReminderInterval time.Duration
	}

	Model struct {
		Path string // 预训练模型文件路径（JSON）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "auticare")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "auticare-backend")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.SensorTopic = getEnv("MQTT_SENSOR_TOPIC", "auticare/sensor/+")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8000")

	cfg.JWT.Secret = getEnv("JWT_SECRET", "change-me-in-production")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Scheduler.ProcessInterval = getEnvDuration("PROCESS_INTERVAL", 5*time.Minute)
	cfg.Scheduler.WindowDuration = getEnvDuration("WINDOW_DURATION", 5*time.Minute)
	cfg.Scheduler.MaxSamples = getEnvInt("MAX_SAMPLES", 100)
	cfg.Scheduler.BatchSize = getEnvInt("BATCH_SIZE", 50)

	// 读超时只在收到 pong 时刷新，探测周期必须明显短于读超时，
	// 否则一次 RTT 抖动就会把健康的空闲连接误判为死连接
	cfg.WebSocket.ReadTimeout = getEnvDuration("WS_READ_TIMEOUT", 60*time.Second)
	cfg.WebSocket.PingInterval = getEnvDuration("WS_PING_INTERVAL", cfg.WebSocket.ReadTimeout*9/10)
	cfg.WebSocket.WriteTimeout = getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second)
	if cfg.WebSocket.PingInterval >= cfg.WebSocket.ReadTimeout {
		return nil, fmt.Errorf("WS_PING_INTERVAL (%v) must be shorter than WS_READ_TIMEOUT (%v)",
			cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)
	}

	cfg.SMS.Enabled = getEnv("SMS_ENABLED", "false") == "true"
	cfg.SMS.BaseURL = getEnv("SMS_BASE_URL", "")
	cfg.SMS.APIKey = getEnv("SMS_API_KEY", "")
	cfg.SMS.SenderID = getEnv("SMS_SENDER_ID", "AutiCare")
	cfg.SMS.ReminderInterval = getEnvDuration("SMS_REMINDER_INTERVAL", time.Minute)

	cfg.Model.Path = getEnv("MODEL_PATH", "models/auticare_model.json")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
