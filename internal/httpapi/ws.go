package httpapi

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
	"github.com/wan-elmus/AutiCare/internal/ws"
)

// WSHandler WebSocket 接入：实时推送通道 + 双工传感器上报通道
type WSHandler struct {
	auth        *AuthHandler
	manager     *ws.Manager
	sensorRepo  *repository.SensorDataRepository
	upgrader    websocket.Upgrader
	readTimeout time.Duration
	logger      *zap.Logger
}

// NewWSHandler 创建 WebSocket Handler
func NewWSHandler(
	auth *AuthHandler,
	manager *ws.Manager,
	sensorRepo *repository.SensorDataRepository,
	readTimeout time.Duration,
	logger *zap.Logger,
) *WSHandler {
	return &WSHandler{
		auth:       auth,
		manager:    manager,
		sensorRepo: sensorRepo,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 部署在同域反向代理之后，握手已由令牌校验把关
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readTimeout: readTimeout,
		logger:      logger,
	}
}

// Predictions 实时推送通道：注册到连接注册表，服务端单向推送
// 同一邮箱的重复连接被拒绝（新连接收到 close 帧，旧连接保留）
func (h *WSHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.handshakeAuth(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("email", claims.Email),
			zap.Error(err),
		)
		return
	}

	if err := h.manager.Register(claims.Email, claims.UserID, conn); err != nil {
		// 注册表已关闭新连接，这里只记录
		h.logger.Warn("Connection rejected",
			zap.String("email", claims.Email),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("Client connected",
		zap.String("email", claims.Email),
		zap.Int64("user_id", claims.UserID),
	)

	// 读泵：只为侦测断开和响应 pong，客户端不在此通道上发数据
	h.readPump(conn, claims.Email)
}

func (h *WSHandler) readPump(conn *websocket.Conn, email string) {
	defer h.manager.Unregister(email)

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Client connection lost",
					zap.String("email", email),
					zap.Error(err),
				)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

// SensorData 双工传感器上报通道：收帧入库，逐帧回执
func (h *WSHandler) SensorData(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.handshakeAuth(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("email", claims.Email),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	h.logger.Info("Sensor stream connected",
		zap.String("email", claims.Email),
		zap.Int64("user_id", claims.UserID),
	)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var frame sensorFrame
		if err := conn.ReadJSON(&frame); err != nil {
			// 关闭帧或超时结束会话；解码失败只回执错误，连接保持可用
			var closeErr *websocket.CloseError
			var netErr net.Error
			if errors.As(err, &closeErr) || errors.As(err, &netErr) {
				return
			}
			_ = conn.WriteJSON(map[string]string{"error": "invalid sensor frame"})
			continue
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
		if _, err := h.sensorRepo.InsertSample(r.Context(), sample); err != nil {
			h.logger.Error("Failed to store sensor sample",
				zap.Int64("user_id", claims.UserID),
				zap.Error(err),
			)
			_ = conn.WriteJSON(map[string]string{"error": "failed to store sensor data"})
			continue
		}

		_ = conn.WriteJSON(map[string]string{"message": "Sensor data received"})
	}
}

// handshakeAuth 握手阶段认证：浏览器 WebSocket 无法带自定义头，用 cookie 或查询参数
func (h *WSHandler) handshakeAuth(w http.ResponseWriter, r *http.Request) (*Claims, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return nil, false
	}

	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}

	return claims, true
}
