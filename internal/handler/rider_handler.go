package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/blitznow/ridertraining/internal/middleware"
	"github.com/blitznow/ridertraining/internal/model"
)

// riderInfoResponse は GET /rider-info のレスポンス。
// rider_ageは日が判定できない場合nullになる。
type riderInfoResponse struct {
	RiderID  model.RiderID  `json:"rider_id"`
	NodeType model.NodeType `json:"node_type"`
	RiderAge *int           `json:"rider_age"`
	Degraded bool           `json:"degraded,omitempty"`
}

// RiderHandler はライダー情報のHTTPハンドラー。
type RiderHandler struct {
	service RiderServiceInterface
	logger  *slog.Logger
}

// NewRiderHandler はRiderHandlerの新しいインスタンスを生成する。
func NewRiderHandler(service RiderServiceInterface, logger *slog.Logger) *RiderHandler {
	return &RiderHandler{service: service, logger: logger}
}

// GetRiderInfo は GET /rider-info?rider_id= を処理する。
func (h *RiderHandler) GetRiderInfo(w http.ResponseWriter, r *http.Request) {
	riderID := riderIDFromQuery(r)

	rd, err := h.service.Resolve(r.Context(), riderID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, riderInfoResponse{
		RiderID:  rd.RiderID,
		NodeType: rd.NodeType,
		RiderAge: rd.Day,
		Degraded: rd.Degraded,
	})
}

// riderIDFromQuery はクエリのrider_idを読み取り、ログ用にリクエストコンテキストへ記録する。
func riderIDFromQuery(r *http.Request) model.RiderID {
	id := model.RiderID(strings.TrimSpace(r.URL.Query().Get("rider_id")))
	middleware.SetRiderID(r.Context(), id)
	return id
}
