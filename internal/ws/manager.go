package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/metrics"
)

// ErrDuplicateConnection 同一身份已有活跃连接（拒绝新连接，不顶替旧连接）
var ErrDuplicateConnection = errors.New("identity already connected")

// Conn 连接抽象（生产实现为 *websocket.Conn）
type Conn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// client 一条活跃连接
// writeMu 串行化对同一连接的并发写（调度器推送、ping、消除事件可能同时到达）
type client struct {
	email       string
	userID      int64
	conn        Conn
	connectedAt time.Time
	writeMu     sync.Mutex
}

// Manager 连接注册表：身份（邮箱）→ 活跃连接，数字用户 ID 做二级索引
// 两个索引在同一临界区内维护，保证不会分叉
type Manager struct {
	mu      sync.Mutex
	clients map[string]*client
	byID    map[int64]string

	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewManager 创建连接注册表
func NewManager(writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		clients:      make(map[string]*client),
		byID:         make(map[int64]string),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Register 登记一条已认证连接
// 身份已有活跃连接时拒绝新连接：关闭新通道并返回 ErrDuplicateConnection
// （防止另一标签页/设备静默顶替会话；死连接由 ping 循环回收后方可重连）
func (m *Manager) Register(email string, userID int64, conn Conn) error {
	m.mu.Lock()
	if _, exists := m.clients[email]; exists {
		m.mu.Unlock()

		deadline := time.Now().Add(m.writeTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"),
			deadline)
		_ = conn.Close()

		m.logger.Warn("Rejected duplicate connection",
			zap.String("email", email),
		)
		return ErrDuplicateConnection
	}

	m.clients[email] = &client{
		email:       email,
		userID:      userID,
		conn:        conn,
		connectedAt: time.Now(),
	}
	m.byID[userID] = email
	count := len(m.clients)
	m.mu.Unlock()

	metrics.SetWSConnections(count)
	m.logger.Info("User connected",
		zap.String("email", email),
		zap.Int64("user_id", userID),
		zap.Int("active_connections", count),
	)
	return nil
}

// Unregister 注销连接（幂等：身份不存在时是空操作）
func (m *Manager) Unregister(email string) {
	m.mu.Lock()
	c, exists := m.clients[email]
	if exists {
		delete(m.clients, email)
		delete(m.byID, c.userID)
	}
	count := len(m.clients)
	m.mu.Unlock()

	if !exists {
		return
	}

	metrics.SetWSConnections(count)
	_ = c.conn.Close()
	m.logger.Info("User disconnected",
		zap.String("email", email),
		zap.Int("active_connections", count),
	)
}

// SendToUser 向指定身份推送一帧
// 身份不在线时静默丢弃（最多一次交付，不排队不重放）；写失败时剪除该连接
func (m *Manager) SendToUser(email string, payload interface{}) {
	m.mu.Lock()
	c, exists := m.clients[email]
	m.mu.Unlock()
	if !exists {
		return
	}

	if err := m.writeJSON(c, payload); err != nil {
		m.logger.Error("Failed to send message, pruning connection",
			zap.String("email", email),
			zap.Error(err),
		)
		m.Unregister(email)
	}
}

// SendToUserID 按数字用户 ID 推送（二级索引查主键）
func (m *Manager) SendToUserID(userID int64, payload interface{}) {
	m.mu.Lock()
	email, exists := m.byID[userID]
	m.mu.Unlock()
	if !exists {
		return
	}

	m.SendToUser(email, payload)
}

// Broadcast 向所有活跃连接推送
// 先完整扫一遍收集失败者，扫完再统一剪除：迭代期间的失败不会跳过其余接收方
func (m *Manager) Broadcast(payload interface{}) {
	m.mu.Lock()
	snapshot := make([]*client, 0, len(m.clients))
	for _, c := range m.clients {
		snapshot = append(snapshot, c)
	}
	m.mu.Unlock()

	var failed []string
	for _, c := range snapshot {
		if err := m.writeJSON(c, payload); err != nil {
			m.logger.Error("Failed to broadcast to client",
				zap.String("email", c.email),
				zap.Error(err),
			)
			failed = append(failed, c.email)
		}
	}

	for _, email := range failed {
		m.Unregister(email)
	}
}

// PingLoop 存活探测循环：定期向每条连接发 ping，失败即注销
// 这是回收静默死连接、释放被占身份槽位的唯一机制
func (m *Manager) PingLoop(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Ping loop stopped")
			return
		case <-ticker.C:
			m.pingAll()
		}
	}
}

// pingAll 对全部连接做一轮探测
func (m *Manager) pingAll() {
	m.mu.Lock()
	snapshot := make([]*client, 0, len(m.clients))
	for _, c := range m.clients {
		snapshot = append(snapshot, c)
	}
	m.mu.Unlock()

	var failed []string
	for _, c := range snapshot {
		c.writeMu.Lock()
		err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.writeTimeout))
		c.writeMu.Unlock()
		if err != nil {
			m.logger.Warn("Liveness probe failed, pruning connection",
				zap.String("email", c.email),
				zap.Error(err),
			)
			failed = append(failed, c.email)
		}
	}

	for _, email := range failed {
		m.Unregister(email)
	}
}

// Count 当前活跃连接数
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// IsConnected 身份是否在线
func (m *Manager) IsConnected(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.clients[email]
	return exists
}

// writeJSON 带超时的串行写
func (m *Manager) writeJSON(c *client, payload interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if wc, ok := c.conn.(*websocket.Conn); ok {
		_ = wc.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	}
	return c.conn.WriteJSON(payload)
}
