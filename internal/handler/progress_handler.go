package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/blitznow/ridertraining/internal/middleware"
)

// successResponse は進捗更新系エンドポイントの成功レスポンス。
type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProgressHandler はトレーニング進捗のHTTPハンドラー。
type ProgressHandler struct {
	service ProgressServiceInterface
	logger  *slog.Logger
}

// NewProgressHandler はProgressHandlerの新しいインスタンスを生成する。
func NewProgressHandler(service ProgressServiceInterface, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{service: service, logger: logger}
}

// GetTrainingProgress は GET /training-progress?rider_id= を処理する。
func (h *ProgressHandler) GetTrainingProgress(w http.ResponseWriter, r *http.Request) {
	riderID := riderIDFromQuery(r)

	p, err := h.service.GetProgress(r.Context(), riderID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, p)
}

// UpdateProgress は POST /update-progress を処理する。
func (h *ProgressHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req updateProgressRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	middleware.SetRiderID(r.Context(), req.RiderID)

	if err := h.service.UpsertProgress(r.Context(), req.RiderID, req.ModuleStarted, req.ModuleCompleted); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "Progress updated successfully",
	})
}

// ModuleStarted は POST /module-started を処理する。
func (h *ProgressHandler) ModuleStarted(w http.ResponseWriter, r *http.Request) {
	var req moduleEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	middleware.SetRiderID(r.Context(), req.RiderID)

	if err := h.service.ModuleStarted(r.Context(), req.RiderID, req.Day, req.Timestamp); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: fmt.Sprintf("Module %s started successfully", req.Day),
	})
}

// ModuleCompleted は POST /module-completed を処理する。
func (h *ProgressHandler) ModuleCompleted(w http.ResponseWriter, r *http.Request) {
	var req moduleEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	middleware.SetRiderID(r.Context(), req.RiderID)

	if err := h.service.ModuleCompleted(r.Context(), req.RiderID, req.Day, req.Timestamp); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: fmt.Sprintf("Module %s completed successfully", req.Day),
	})
}
