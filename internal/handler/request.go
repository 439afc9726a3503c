package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/blitznow/ridertraining/internal/middleware"
	"github.com/blitznow/ridertraining/internal/model"
)

// maxRequestBodySize はリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// bodyError はリクエストボディを解釈できなかったことを表す。
// メッセージは呼び出し元の入力についてのものなので、そのまま返してよい。
type bodyError struct {
	err error
}

func (e *bodyError) Error() string {
	return fmt.Sprintf("invalid JSON body: %v", e.err)
}

func (e *bodyError) Unwrap() error {
	return e.err
}

// decodeBody はJSONボディをvに読み込む。空のボディは {} として扱う。
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return &bodyError{err: err}
	}
	if len(data) > maxRequestBodySize {
		return &bodyError{err: fmt.Errorf("body exceeds %d bytes", maxRequestBodySize)}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &bodyError{err: err}
	}
	return nil
}

// writeBodyError はボディ解釈エラーを500で返す。
func writeBodyError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, http.StatusInternalServerError, err.Error())
}

type updateProgressRequest struct {
	RiderID         model.RiderID              `json:"rider_id"`
	ModuleStarted   map[model.ModuleDay]string `json:"module_started"`
	ModuleCompleted map[model.ModuleDay]string `json:"module_completed"`
}

type moduleEventRequest struct {
	RiderID   model.RiderID   `json:"rider_id"`
	Day       model.ModuleDay `json:"day"`
	Timestamp string          `json:"timestamp"`
}

type tutorialStateRequest struct {
	Action     string        `json:"action"`
	RiderID    model.RiderID `json:"rider_id"`
	TutorialID string        `json:"tutorial_id"`
	IsDone     bool          `json:"isDone"`
}

type tutorialsRequest struct {
	Action      string `json:"action"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
}

type dayHubMappingsRequest struct {
	Action      string        `json:"action"`
	Day         int           `json:"day"`
	HubType     model.HubType `json:"hub_type"`
	TutorialIDs []string      `json:"tutorial_ids"`
}
