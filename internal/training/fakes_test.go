package training

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blitznow/ridertraining/internal/model"
	"github.com/blitznow/ridertraining/internal/repository"
)

// memProgressStore はrider_idごとに1行を保持するインメモリのProgressStore。
type memProgressStore struct {
	mu      sync.Mutex
	rows    map[model.RiderID]*model.TrainingProgress
	findErr error
	saveErr error
	upserts int
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{rows: map[model.RiderID]*model.TrainingProgress{}}
}

func (m *memProgressStore) FindProgress(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	row, ok := m.rows[riderID]
	if !ok {
		return nil, nil
	}
	cp := *row
	cp.TutorialState = map[string]model.TutorialState{}
	for k, v := range row.TutorialState {
		cp.TutorialState[k] = v
	}
	return &cp, nil
}

func (m *memProgressStore) UpsertProgress(ctx context.Context, update model.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.upserts++
	row := m.rowLocked(update.RiderID)
	for col, v := range update.Columns() {
		v := v
		switch col {
		case "module_started_day1":
			row.ModuleStartedDay1 = &v
		case "module_started_day2":
			row.ModuleStartedDay2 = &v
		case "module_started_day3":
			row.ModuleStartedDay3 = &v
		case "module_completed_day1":
			row.ModuleCompletedDay1 = &v
		case "module_completed_day2":
			row.ModuleCompletedDay2 = &v
		case "module_completed_day3":
			row.ModuleCompletedDay3 = &v
		case "updated_at":
			row.UpdatedAt = &v
		}
	}
	return nil
}

func (m *memProgressStore) SetTutorialState(ctx context.Context, riderID model.RiderID, state model.TutorialState, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	row := m.rowLocked(riderID)
	row.TutorialState[state.ID] = state
	ts := updatedAt.UTC().Format(time.RFC3339Nano)
	row.UpdatedAt = &ts
	return nil
}

func (m *memProgressStore) rowLocked(riderID model.RiderID) *model.TrainingProgress {
	row, ok := m.rows[riderID]
	if !ok {
		row = &model.TrainingProgress{RiderID: riderID, TutorialState: map[string]model.TutorialState{}}
		m.rows[riderID] = row
	}
	return row
}

// memTutorialStore はインメモリのTutorialStore。
type memTutorialStore struct {
	mu        sync.Mutex
	tutorials map[string]model.Tutorial
	mappings  []model.DayHubMapping
	err       error
}

func newMemTutorialStore() *memTutorialStore {
	return &memTutorialStore{tutorials: map[string]model.Tutorial{}}
}

func (m *memTutorialStore) FindTutorial(ctx context.Context, id string) (*model.Tutorial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.tutorials[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memTutorialStore) ListTutorials(ctx context.Context) ([]model.Tutorial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Tutorial{}
	for _, t := range m.tutorials {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTutorialStore) CreateTutorial(ctx context.Context, t *model.Tutorial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.tutorials[t.ID]; ok {
		return fmt.Errorf("create tutorial %s: %w", t.ID, repository.ErrDuplicate)
	}
	m.tutorials[t.ID] = *t
	return nil
}

func (m *memTutorialStore) ListMappings(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []model.DayHubMapping{}
	for _, mp := range m.mappings {
		if mp.Day == day && mp.HubType == hubType {
			out = append(out, mp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memTutorialStore) CreateMappings(ctx context.Context, mappings []model.DayHubMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.mappings = append(m.mappings, mappings...)
	return nil
}

// stubResolver は固定の結果を返すRiderDayResolver。
type stubResolver struct {
	resolveFn func(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error)
}

func (s *stubResolver) Resolve(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error) {
	return s.resolveFn(ctx, riderID)
}

func dayResolver(nodeType model.NodeType, day *int) *stubResolver {
	return &stubResolver{resolveFn: func(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error) {
		return &model.RiderDay{RiderID: riderID, NodeType: nodeType, Day: day}, nil
	}}
}

func intPtr(v int) *int { return &v }
