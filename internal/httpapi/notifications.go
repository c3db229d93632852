package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
	"github.com/wan-elmus/AutiCare/internal/ws"
)

const defaultNotificationLimit = 8

// NotificationsHandler 通知查询与消除
// 消除操作同时把事件推送到该用户的实时通道，保持多标签页一致
type NotificationsHandler struct {
	notificationsRepo *repository.NotificationsRepository
	manager           *ws.Manager
	logger            *zap.Logger
}

// NewNotificationsHandler 创建通知 Handler
func NewNotificationsHandler(
	notificationsRepo *repository.NotificationsRepository,
	manager *ws.Manager,
	logger *zap.Logger,
) *NotificationsHandler {
	return &NotificationsHandler{
		notificationsRepo: notificationsRepo,
		manager:           manager,
		logger:            logger,
	}
}

// List 最近的未消除通知，按时间倒序
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request, claims *Claims) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultNotificationLimit)
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	notifications, err := h.notificationsRepo.ListUndismissed(r.Context(), claims.UserID, limit)
	if err != nil {
		h.logger.Error("Failed to list notifications",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	writeJSON(w, http.StatusOK, notifications)
}

// Dismiss 消除单条通知（幂等：已消除的再次消除仍返回成功）
func (h *NotificationsHandler) Dismiss(w http.ResponseWriter, r *http.Request, claims *Claims, notificationID int64) {
	ctx := r.Context()

	exists, err := h.notificationsRepo.Exists(ctx, claims.UserID, notificationID)
	if err != nil {
		h.logger.Error("Failed to check notification",
			zap.Int64("notification_id", notificationID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to dismiss notification")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}

	changed, err := h.notificationsRepo.Dismiss(ctx, claims.UserID, notificationID)
	if err != nil {
		h.logger.Error("Failed to dismiss notification",
			zap.Int64("notification_id", notificationID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to dismiss notification")
		return
	}

	if changed {
		h.manager.SendToUser(claims.Email, ws.DismissMessage{
			Type: ws.TypeDismissNotification,
			ID:   notificationID,
		})
	}

	writeMessage(w, http.StatusOK, "Notification dismissed")
}

// DismissAll 消除用户全部通知（幂等）
func (h *NotificationsHandler) DismissAll(w http.ResponseWriter, r *http.Request, claims *Claims) {
	affected, err := h.notificationsRepo.DismissAll(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("Failed to dismiss all notifications",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to dismiss notifications")
		return
	}

	if affected > 0 {
		h.manager.SendToUser(claims.Email, ws.DismissMessage{
			Type: ws.TypeDismissAllNotifications,
		})
	}

	writeMessage(w, http.StatusOK, "All notifications dismissed")
}

type smsDeliveryReceipt struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// SMSDelivery 短信网关的投递回执（用药提醒的送达状态）
func (h *NotificationsHandler) SMSDelivery(w http.ResponseWriter, r *http.Request) {
	var receipt smsDeliveryReceipt
	if err := readBodyJSON(r, 1<<20, &receipt); err != nil || receipt.MessageID == "" {
		writeError(w, http.StatusBadRequest, "invalid delivery receipt")
		return
	}

	h.logger.Info("SMS delivery receipt",
		zap.String("message_id", receipt.MessageID),
		zap.String("status", receipt.Status),
		zap.String("reason", receipt.Reason),
	)

	writeMessage(w, http.StatusOK, "receipt recorded")
}

// notificationIDFromPath 解析 /api/notifications/{id}/dismiss 的 ID 段
func notificationIDFromPath(path string) (int64, bool) {
	rest := strings.TrimPrefix(path, "/api/notifications/")
	rest = strings.TrimSuffix(rest, "/dismiss")
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
