package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
)

// ChildrenHandler 儿童档案 CRUD（归属锁定在登录监护人名下）
type ChildrenHandler struct {
	childrenRepo *repository.ChildrenRepository
	logger       *zap.Logger
}

// NewChildrenHandler 创建儿童档案 Handler
func NewChildrenHandler(childrenRepo *repository.ChildrenRepository, logger *zap.Logger) *ChildrenHandler {
	return &ChildrenHandler{
		childrenRepo: childrenRepo,
		logger:       logger,
	}
}

// List 监护人名下的儿童
func (h *ChildrenHandler) List(w http.ResponseWriter, r *http.Request, claims *Claims) {
	children, err := h.childrenRepo.ListByCaregiver(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("Failed to list children",
			zap.Int64("caregiver_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []models.Child{}
	}

	writeJSON(w, http.StatusOK, children)
}

type childRequest struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Notes string `json:"notes"`
}

// Create 建立儿童档案
func (h *ChildrenHandler) Create(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req childRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Age < 0 {
		writeError(w, http.StatusBadRequest, "age must not be negative")
		return
	}

	child := &models.Child{
		CaregiverID: claims.UserID,
		Name:        req.Name,
		Age:         req.Age,
		Notes:       req.Notes,
	}
	id, err := h.childrenRepo.CreateChild(r.Context(), child)
	if err != nil {
		h.logger.Error("Failed to create child",
			zap.Int64("caregiver_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}
	child.ID = id

	writeJSON(w, http.StatusCreated, child)
}

// Update 部分更新（白名单字段）
func (h *ChildrenHandler) Update(w http.ResponseWriter, r *http.Request, claims *Claims, childID int64) {
	var update models.ChildUpdate
	if err := readBodyJSON(r, 1<<20, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.Age != nil && *update.Age < 0 {
		writeError(w, http.StatusBadRequest, "age must not be negative")
		return
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	if err := h.childrenRepo.UpdateChild(r.Context(), claims.UserID, childID, &update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "child not found")
			return
		}
		h.logger.Error("Failed to update child",
			zap.Int64("child_id", childID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}

	child, err := h.childrenRepo.GetChild(r.Context(), claims.UserID, childID)
	if err != nil {
		h.logger.Error("Failed to reload child",
			zap.Int64("child_id", childID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}

	writeJSON(w, http.StatusOK, child)
}

// Delete 删除儿童档案
func (h *ChildrenHandler) Delete(w http.ResponseWriter, r *http.Request, claims *Claims, childID int64) {
	if err := h.childrenRepo.DeleteChild(r.Context(), claims.UserID, childID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "child not found")
			return
		}
		h.logger.Error("Failed to delete child",
			zap.Int64("child_id", childID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}

	writeMessage(w, http.StatusOK, "Child deleted")
}

// idFromPath 解析 /prefix/{id} 的末段 ID
func idFromPath(path, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
