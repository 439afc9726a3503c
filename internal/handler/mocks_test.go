package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blitznow/ridertraining/internal/model"
)

// --- モック定義 ---

type mockRiderService struct {
	resolveFn func(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error)
}

func (m *mockRiderService) Resolve(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, riderID)
	}
	if riderID.IsZero() {
		return nil, model.NewMissingParameterError("Rider ID is required")
	}
	return nil, model.NewRiderNotFoundError()
}

type mockProgressService struct {
	getProgressFn         func(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error)
	upsertProgressFn      func(ctx context.Context, riderID model.RiderID, started, completed map[model.ModuleDay]string) error
	moduleStartedFn       func(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error
	moduleCompletedFn     func(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error
	getTutorialStatesFn   func(ctx context.Context, riderID model.RiderID) (map[string]model.TutorialState, error)
	updateTutorialStateFn func(ctx context.Context, riderID model.RiderID, tutorialID string, isDone bool) error
}

func (m *mockProgressService) GetProgress(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error) {
	if m.getProgressFn != nil {
		return m.getProgressFn(ctx, riderID)
	}
	return nil, model.NewProgressNotFoundError()
}

func (m *mockProgressService) UpsertProgress(ctx context.Context, riderID model.RiderID, started, completed map[model.ModuleDay]string) error {
	if m.upsertProgressFn != nil {
		return m.upsertProgressFn(ctx, riderID, started, completed)
	}
	return nil
}

func (m *mockProgressService) ModuleStarted(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error {
	if m.moduleStartedFn != nil {
		return m.moduleStartedFn(ctx, riderID, day, timestamp)
	}
	return nil
}

func (m *mockProgressService) ModuleCompleted(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error {
	if m.moduleCompletedFn != nil {
		return m.moduleCompletedFn(ctx, riderID, day, timestamp)
	}
	return nil
}

func (m *mockProgressService) GetTutorialStates(ctx context.Context, riderID model.RiderID) (map[string]model.TutorialState, error) {
	if m.getTutorialStatesFn != nil {
		return m.getTutorialStatesFn(ctx, riderID)
	}
	return map[string]model.TutorialState{}, nil
}

func (m *mockProgressService) UpdateTutorialState(ctx context.Context, riderID model.RiderID, tutorialID string, isDone bool) error {
	if m.updateTutorialStateFn != nil {
		return m.updateTutorialStateFn(ctx, riderID, tutorialID, isDone)
	}
	return nil
}

type mockTutorialService struct {
	getTutorialsForRiderFn func(ctx context.Context, riderID model.RiderID) (*model.TutorialFeed, error)
	createTutorialFn       func(ctx context.Context, t model.Tutorial) (*model.Tutorial, error)
	getTutorialFn          func(ctx context.Context, id string) (*model.Tutorial, error)
	listTutorialsFn        func(ctx context.Context) ([]model.Tutorial, error)
	createMappingsFn       func(ctx context.Context, day int, hubType model.HubType, tutorialIDs []string) (int, error)
	getMappingsFn          func(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error)
}

func (m *mockTutorialService) GetTutorialsForRider(ctx context.Context, riderID model.RiderID) (*model.TutorialFeed, error) {
	if m.getTutorialsForRiderFn != nil {
		return m.getTutorialsForRiderFn(ctx, riderID)
	}
	return &model.TutorialFeed{Tutorials: []model.TutorialFeedItem{}}, nil
}

func (m *mockTutorialService) CreateTutorial(ctx context.Context, t model.Tutorial) (*model.Tutorial, error) {
	if m.createTutorialFn != nil {
		return m.createTutorialFn(ctx, t)
	}
	return &t, nil
}

func (m *mockTutorialService) GetTutorial(ctx context.Context, id string) (*model.Tutorial, error) {
	if m.getTutorialFn != nil {
		return m.getTutorialFn(ctx, id)
	}
	return nil, model.NewTutorialNotFoundError(id)
}

func (m *mockTutorialService) ListTutorials(ctx context.Context) ([]model.Tutorial, error) {
	if m.listTutorialsFn != nil {
		return m.listTutorialsFn(ctx)
	}
	return nil, nil
}

func (m *mockTutorialService) CreateDayHubMappings(ctx context.Context, day int, hubType model.HubType, tutorialIDs []string) (int, error) {
	if m.createMappingsFn != nil {
		return m.createMappingsFn(ctx, day, hubType, tutorialIDs)
	}
	return len(tutorialIDs), nil
}

func (m *mockTutorialService) GetMappings(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error) {
	if m.getMappingsFn != nil {
		return m.getMappingsFn(ctx, day, hubType)
	}
	return nil, nil
}

// --- テストヘルパー ---

type testServices struct {
	rider    *mockRiderService
	progress *mockProgressService
	tutorial *mockTutorialService
}

func newTestServices() *testServices {
	return &testServices{
		rider:    &mockRiderService{},
		progress: &mockProgressService{},
		tutorial: &mockTutorialService{},
	}
}

func (s *testServices) router() http.Handler {
	return NewRouter(&RouterDeps{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		RiderService:    s.rider,
		ProgressService: s.progress,
		TutorialService: s.tutorial,
	})
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, rec.Body.String())
	}
	return body
}

func intPtr(v int) *int {
	return &v
}
