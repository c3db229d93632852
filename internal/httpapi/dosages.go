package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
	"github.com/wan-elmus/AutiCare/internal/repository"
)

// DosagesHandler 用药剂量 CRUD
// 归属链：监护人 → 儿童 → 剂量，创建时校验儿童归属
type DosagesHandler struct {
	dosagesRepo  *repository.DosagesRepository
	childrenRepo *repository.ChildrenRepository
	logger       *zap.Logger
}

// NewDosagesHandler 创建剂量 Handler
func NewDosagesHandler(
	dosagesRepo *repository.DosagesRepository,
	childrenRepo *repository.ChildrenRepository,
	logger *zap.Logger,
) *DosagesHandler {
	return &DosagesHandler{
		dosagesRepo:  dosagesRepo,
		childrenRepo: childrenRepo,
		logger:       logger,
	}
}

// List 监护人名下全部剂量
func (h *DosagesHandler) List(w http.ResponseWriter, r *http.Request, claims *Claims) {
	dosages, err := h.dosagesRepo.ListByCaregiver(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("Failed to list dosages",
			zap.Int64("caregiver_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list dosages")
		return
	}
	if dosages == nil {
		dosages = []models.Dosage{}
	}

	writeJSON(w, http.StatusOK, dosages)
}

type dosageRequest struct {
	ChildID      int64   `json:"child_id"`
	Medication   string  `json:"medication"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
	ScheduleTime string  `json:"schedule_time"`
	Active       *bool   `json:"active,omitempty"`
}

// Create 创建剂量
func (h *DosagesHandler) Create(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req dosageRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Medication) == "" {
		writeError(w, http.StatusBadRequest, "medication is required")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if !validScheduleTime(req.ScheduleTime) {
		writeError(w, http.StatusBadRequest, "schedule_time must be HH:MM")
		return
	}

	// 归属校验：child 必须在监护人名下
	if _, err := h.childrenRepo.GetChild(r.Context(), claims.UserID, req.ChildID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "child not found")
			return
		}
		h.logger.Error("Failed to check child ownership",
			zap.Int64("child_id", req.ChildID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to create dosage")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	dosage := &models.Dosage{
		ChildID:      req.ChildID,
		Medication:   req.Medication,
		Amount:       req.Amount,
		Unit:         req.Unit,
		ScheduleTime: req.ScheduleTime,
		Active:       active,
	}
	id, err := h.dosagesRepo.CreateDosage(r.Context(), dosage)
	if err != nil {
		h.logger.Error("Failed to create dosage",
			zap.Int64("child_id", req.ChildID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to create dosage")
		return
	}
	dosage.ID = id

	writeJSON(w, http.StatusCreated, dosage)
}

// Update 部分更新（白名单字段）
func (h *DosagesHandler) Update(w http.ResponseWriter, r *http.Request, claims *Claims, dosageID int64) {
	var update models.DosageUpdate
	if err := readBodyJSON(r, 1<<20, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.Amount != nil && *update.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if update.ScheduleTime != nil && !validScheduleTime(*update.ScheduleTime) {
		writeError(w, http.StatusBadRequest, "schedule_time must be HH:MM")
		return
	}

	if err := h.dosagesRepo.UpdateDosage(r.Context(), claims.UserID, dosageID, &update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dosage not found")
			return
		}
		h.logger.Error("Failed to update dosage",
			zap.Int64("dosage_id", dosageID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to update dosage")
		return
	}

	dosage, err := h.dosagesRepo.GetDosage(r.Context(), claims.UserID, dosageID)
	if err != nil {
		h.logger.Error("Failed to reload dosage",
			zap.Int64("dosage_id", dosageID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to update dosage")
		return
	}

	writeJSON(w, http.StatusOK, dosage)
}

// Delete 删除剂量
func (h *DosagesHandler) Delete(w http.ResponseWriter, r *http.Request, claims *Claims, dosageID int64) {
	if err := h.dosagesRepo.DeleteDosage(r.Context(), claims.UserID, dosageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dosage not found")
			return
		}
		h.logger.Error("Failed to delete dosage",
			zap.Int64("dosage_id", dosageID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete dosage")
		return
	}

	writeMessage(w, http.StatusOK, "Dosage deleted")
}

// validScheduleTime 校验 "HH:MM" 本地时间
func validScheduleTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
