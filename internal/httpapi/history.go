package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/repository"
)

const defaultHistoryHours = 24

// HistoryHandler 历史读数查询与导出
type HistoryHandler struct {
	predictionsRepo *repository.PredictionsRepository
	logger          *zap.Logger
}

// NewHistoryHandler 创建历史查询 Handler
func NewHistoryHandler(predictionsRepo *repository.PredictionsRepository, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		predictionsRepo: predictionsRepo,
		logger:          logger,
	}
}

func (h *HistoryHandler) listHistory(r *http.Request, claims *Claims) ([]repository.HistoryRow, error) {
	hours := parseInt(r.URL.Query().Get("hours"), defaultHistoryHours)
	if hours <= 0 {
		hours = defaultHistoryHours
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	return h.predictionsRepo.ListHistory(r.Context(), claims.UserID, since)
}

// List 历史读数（特征联预测，按时间倒序）
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request, claims *Claims) {
	history, err := h.listHistory(r, claims)
	if err != nil {
		h.logger.Error("Failed to list history",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if history == nil {
		history = []repository.HistoryRow{}
	}

	writeJSON(w, http.StatusOK, history)
}

// Export 历史读数导出为 XLSX
func (h *HistoryHandler) Export(w http.ResponseWriter, r *http.Request, claims *Claims) {
	history, err := h.listHistory(r, claims)
	if err != nil {
		h.logger.Error("Failed to export history",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to export history")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		h.logger.Error("Failed to create sheet", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export history")
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Timestamp", "GSR", "Heart Rate", "Temperature", "Stress Level"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			h.logger.Error("Failed to build cell name", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to export history")
			return
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			h.logger.Error("Failed to write header", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to export history")
			return
		}
	}

	for i, row := range history {
		values := []interface{}{
			row.Timestamp.Format(time.RFC3339),
			row.GSRMean,
			row.HRateMean,
			row.TempAvg,
			row.StressLevel,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				h.logger.Error("Failed to build cell name", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to export history")
				return
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				h.logger.Error("Failed to write row", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to export history")
				return
			}
		}
	}

	filename := fmt.Sprintf("history_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := f.Write(w); err != nil {
		h.logger.Error("Failed to stream workbook",
			zap.Int64("user_id", claims.UserID),
			zap.Error(err),
		)
	}
}
