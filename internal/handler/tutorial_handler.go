package handler

import (
	"log/slog"
	"net/http"

	"github.com/blitznow/ridertraining/internal/middleware"
	"github.com/blitznow/ridertraining/internal/model"
)

// actionの値
const (
	actionCreate = "create"
	actionGet    = "get"
	actionList   = "list"
	actionUpdate = "update"
)

type tutorialStateUpdatedData struct {
	Updated bool `json:"updated"`
}

type tutorialStatesData struct {
	TutorialState map[string]model.TutorialState `json:"tutorial_state"`
}

type mappingsCreatedData struct {
	Day     int           `json:"day"`
	HubType model.HubType `json:"hub_type"`
	Count   int           `json:"count"`
}

// TutorialHandler はチュートリアル関連のHTTPハンドラー。
// レスポンスは全て {message, data, error} 形式で返す。
type TutorialHandler struct {
	tutorials TutorialServiceInterface
	progress  ProgressServiceInterface
	logger    *slog.Logger
}

// NewTutorialHandler はTutorialHandlerの新しいインスタンスを生成する。
func NewTutorialHandler(tutorials TutorialServiceInterface, progress ProgressServiceInterface, logger *slog.Logger) *TutorialHandler {
	return &TutorialHandler{tutorials: tutorials, progress: progress, logger: logger}
}

// GetTutorials は GET /get-tutorials?rider_id= を処理する。
func (h *TutorialHandler) GetTutorials(w http.ResponseWriter, r *http.Request) {
	riderID := riderIDFromQuery(r)

	feed, err := h.tutorials.GetTutorialsForRider(r.Context(), riderID)
	if err != nil {
		handleEnvelopeError(w, r, h.logger, "Failed to fetch tutorials", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, envelope{
		Message: "Tutorials fetched successfully",
		Data:    feed,
	})
}

// TutorialState は POST /tutorial-state を処理する。actionの既定値はupdate。
func (h *TutorialHandler) TutorialState(w http.ResponseWriter, r *http.Request) {
	var req tutorialStateRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	middleware.SetRiderID(r.Context(), req.RiderID)

	switch req.Action {
	case "", actionUpdate:
		if err := h.progress.UpdateTutorialState(r.Context(), req.RiderID, req.TutorialID, req.IsDone); err != nil {
			handleEnvelopeError(w, r, h.logger, "Failed to update tutorial state", err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, envelope{
			Message: "Tutorial state updated",
			Data:    tutorialStateUpdatedData{Updated: true},
		})
	case actionGet:
		states, err := h.progress.GetTutorialStates(r.Context(), req.RiderID)
		if err != nil {
			handleEnvelopeError(w, r, h.logger, "Failed to fetch tutorial states", err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, envelope{
			Message: "Tutorial states fetched",
			Data:    tutorialStatesData{TutorialState: states},
		})
	default:
		handleEnvelopeError(w, r, h.logger, "", model.NewUnknownActionError(req.Action))
	}
}

// Tutorials は POST /tutorials を処理する。actionが空の場合は一覧を返す。
func (h *TutorialHandler) Tutorials(w http.ResponseWriter, r *http.Request) {
	var req tutorialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	switch req.Action {
	case actionCreate:
		t, err := h.tutorials.CreateTutorial(r.Context(), model.Tutorial{
			ID:          req.ID,
			Title:       req.Title,
			Subtitle:    req.Subtitle,
			Description: req.Description,
		})
		if err != nil {
			handleEnvelopeError(w, r, h.logger, "Failed to create tutorial", err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, envelope{
			Message: "Tutorial created",
			Data:    t,
		})
	case actionGet, actionList, "":
		if req.Action == actionGet && req.ID != "" {
			t, err := h.tutorials.GetTutorial(r.Context(), req.ID)
			if err != nil {
				handleEnvelopeError(w, r, h.logger, "Failed to fetch tutorial", err)
				return
			}
			middleware.WriteJSON(w, http.StatusOK, envelope{
				Message: "Tutorial fetched",
				Data:    t,
			})
			return
		}
		tutorials, err := h.tutorials.ListTutorials(r.Context())
		if err != nil {
			handleEnvelopeError(w, r, h.logger, "Failed to fetch tutorials", err)
			return
		}
		if tutorials == nil {
			tutorials = []model.Tutorial{}
		}
		middleware.WriteJSON(w, http.StatusOK, envelope{
			Message: "Tutorials fetched",
			Data:    tutorials,
		})
	default:
		handleEnvelopeError(w, r, h.logger, "", model.NewUnknownActionError(req.Action))
	}
}

// DayHubMappings は POST /day-hub-mappings を処理する。actionが空の場合はgetとして扱う。
func (h *TutorialHandler) DayHubMappings(w http.ResponseWriter, r *http.Request) {
	var req dayHubMappingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	switch req.Action {
	case actionCreate:
		count, err := h.tutorials.CreateDayHubMappings(r.Context(), req.Day, req.HubType, req.TutorialIDs)
		if err != nil {
			handleEnvelopeError(w, r, h.logger, "Failed to create mappings", err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, envelope{
			Message: "Mappings created",
			Data:    mappingsCreatedData{Day: req.Day, HubType: req.HubType, Count: count},
		})
	case actionGet, "":
		mappings, err := h.tutorials.GetMappings(r.Context(), req.Day, req.HubType)
		if err != nil {
			handleEnvelopeError(w, r, h.logger, "Failed to fetch mappings", err)
			return
		}
		if mappings == nil {
			mappings = []model.DayHubMapping{}
		}
		middleware.WriteJSON(w, http.StatusOK, envelope{
			Message: "Mappings fetched",
			Data:    mappings,
		})
	default:
		handleEnvelopeError(w, r, h.logger, "", model.NewUnknownActionError(req.Action))
	}
}
