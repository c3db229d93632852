package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/repository"
	"github.com/wan-elmus/AutiCare/internal/store"
)

// PredictHandler 最近一次分类读数查询（Redis 优先，DB 回退）
type PredictHandler struct {
	cache           *store.ReadingCache
	predictionsRepo *repository.PredictionsRepository
	logger          *zap.Logger
}

// NewPredictHandler 创建预测查询 Handler
func NewPredictHandler(
	cache *store.ReadingCache,
	predictionsRepo *repository.PredictionsRepository,
	logger *zap.Logger,
) *PredictHandler {
	return &PredictHandler{
		cache:           cache,
		predictionsRepo: predictionsRepo,
		logger:          logger,
	}
}

// Latest 取用户最近一次分类结果
func (h *PredictHandler) Latest(w http.ResponseWriter, r *http.Request, claims *Claims) {
	ctx := r.Context()

	// 1. 缓存命中直接返回完整读数
	reading, err := h.cache.GetLatest(ctx, claims.UserID)
	if err == nil {
		writeJSON(w, http.StatusOK, reading)
		return
	}
	if !errors.Is(err, store.ErrCacheMiss) {
		h.logger.Warn("Reading cache unavailable, falling back to database",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
	}

	// 2. 回退到数据库的最近预测
	prediction, err := h.predictionsRepo.GetLatestPrediction(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no predictions yet")
			return
		}
		h.logger.Error("Failed to get latest prediction",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to get prediction")
		return
	}

	writeJSON(w, http.StatusOK, prediction)
}
