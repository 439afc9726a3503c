package supabase

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blitznow/ridertraining/internal/model"
	"github.com/blitznow/ridertraining/internal/repository"
)

// recordedRequest はテストサーバーが受け取ったリクエストの記録。
type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Prefer string
	Body   []byte
}

// recorder はリクエストを記録し、順に用意されたレスポンスを返すハンドラー。
type recorder struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses []string
}

func (rec *recorder) handler(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	q := map[string]string{}
	for k, v := range r.URL.Query() {
		q[k] = v[0]
	}
	rec.requests = append(rec.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  q,
		Prefer: r.Header.Get("Prefer"),
		Body:   body,
	})

	resp := "[]"
	if len(rec.responses) > 0 {
		resp, rec.responses = rec.responses[0], rec.responses[1:]
	}
	if r.Method == http.MethodPost {
		w.WriteHeader(http.StatusCreated)
	}
	w.Write([]byte(resp))
}

func newRecorderClient(t *testing.T, responses ...string) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{responses: responses}
	c, _ := newTestClient(t, rec.handler, 0)
	return c, rec
}

func TestProgressStore_FindProgress(t *testing.T) {
	c, rec := newRecorderClient(t, `[{
		"rider_id": 478,
		"module_started_day1": "2024-03-01T09:00:00Z",
		"module_completed_day1": null,
		"tutorial_state": {"t1": {"id": "t1", "isDone": true}},
		"updated_at": "2024-03-01T09:00:00Z"
	}]`)
	store := NewProgressStore(c)

	got, err := store.FindProgress(context.Background(), "478")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, model.RiderID("478"), got.RiderID)
	require.NotNil(t, got.ModuleStartedDay1)
	assert.Equal(t, "2024-03-01T09:00:00Z", *got.ModuleStartedDay1)
	assert.Nil(t, got.ModuleCompletedDay1)
	assert.Equal(t, model.TutorialState{ID: "t1", IsDone: true}, got.TutorialState["t1"])

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "/rest/v1/training_progress", rec.requests[0].Path)
	assert.Equal(t, "eq.478", rec.requests[0].Query["rider_id"])
}

func TestProgressStore_FindProgress_NotFound(t *testing.T) {
	c, _ := newRecorderClient(t, `[]`)
	store := NewProgressStore(c)

	got, err := store.FindProgress(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// tutorial_stateがnullの行は空マップとして返すことを検証
func TestProgressStore_FindProgress_NullTutorialState(t *testing.T) {
	c, _ := newRecorderClient(t, `[{"rider_id":"abc","tutorial_state":null}]`)
	store := NewProgressStore(c)

	got, err := store.FindProgress(context.Background(), "abc")
	require.NoError(t, err)
	assert.NotNil(t, got.TutorialState)
	assert.Empty(t, got.TutorialState)
}

// UPSERTがon_conflict=rider_idと指定列のみで送られることを検証
func TestProgressStore_UpsertProgress(t *testing.T) {
	c, rec := newRecorderClient(t)
	store := NewProgressStore(c)

	err := store.UpsertProgress(context.Background(), model.ProgressUpdate{
		RiderID:   "478",
		Started:   map[model.ModuleDay]string{model.ModuleDay1: "2024-03-01T09:00:00Z"},
		Completed: map[model.ModuleDay]string{"day9": "ignored"},
		UpdatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	req := rec.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "rider_id", req.Query["on_conflict"])
	assert.Contains(t, req.Prefer, "resolution=merge-duplicates")

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{
		"rider_id":            float64(478),
		"module_started_day1": "2024-03-01T09:00:00Z",
		"updated_at":          "2024-03-01T09:00:00Z",
	}, rows[0])
}

// 既存のtutorial_stateを保持したまま1キーを追加することを検証
func TestProgressStore_SetTutorialState_MergesExisting(t *testing.T) {
	c, rec := newRecorderClient(t,
		`[{"rider_id":478,"tutorial_state":{"t1":{"id":"t1","isDone":true}}}]`,
		`[]`,
	)
	store := NewProgressStore(c)

	err := store.SetTutorialState(context.Background(), "478", model.TutorialState{ID: "t2", IsDone: false}, time.Now())
	require.NoError(t, err)

	require.Len(t, rec.requests, 2)
	assert.Equal(t, http.MethodGet, rec.requests[0].Method)
	assert.Equal(t, http.MethodPost, rec.requests[1].Method)
	assert.Equal(t, "rider_id", rec.requests[1].Query["on_conflict"])

	var rows []struct {
		RiderID       model.RiderID                  `json:"rider_id"`
		TutorialState map[string]model.TutorialState `json:"tutorial_state"`
	}
	require.NoError(t, json.Unmarshal(rec.requests[1].Body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]model.TutorialState{
		"t1": {ID: "t1", IsDone: true},
		"t2": {ID: "t2", IsDone: false},
	}, rows[0].TutorialState)
}

// レコードがない場合もUPSERTで作成することを検証
func TestProgressStore_SetTutorialState_CreatesRecord(t *testing.T) {
	c, rec := newRecorderClient(t, `[]`, `[]`)
	store := NewProgressStore(c)

	err := store.SetTutorialState(context.Background(), "new", model.TutorialState{ID: "t1", IsDone: true}, time.Now())
	require.NoError(t, err)
	require.Len(t, rec.requests, 2)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.requests[1].Body, &rows))
	assert.Equal(t, "new", rows[0]["rider_id"])
}

func TestTutorialStore_FindTutorial(t *testing.T) {
	c, rec := newRecorderClient(t, `[{"id":"t1","title":"初日","subtitle":"準備","description":"説明"}]`)
	store := NewTutorialStore(c)

	got, err := store.FindTutorial(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, &model.Tutorial{ID: "t1", Title: "初日", Subtitle: "準備", Description: "説明"}, got)
	assert.Equal(t, "eq.t1", rec.requests[0].Query["id"])
}

func TestTutorialStore_FindTutorial_NotFound(t *testing.T) {
	c, _ := newRecorderClient(t, `[]`)
	got, err := NewTutorialStore(c).FindTutorial(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTutorialStore_ListTutorials(t *testing.T) {
	c, rec := newRecorderClient(t, `[{"id":"a","title":"A"},{"id":"b","title":"B"}]`)
	got, err := NewTutorialStore(c).ListTutorials(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "id.asc", rec.requests[0].Query["order"])
}

func TestTutorialStore_CreateTutorial(t *testing.T) {
	c, rec := newRecorderClient(t)
	tut := &model.Tutorial{ID: "t1", Title: "初日"}

	require.NoError(t, NewTutorialStore(c).CreateTutorial(context.Background(), tut))

	var rows []model.Tutorial
	require.NoError(t, json.Unmarshal(rec.requests[0].Body, &rows))
	assert.Equal(t, []model.Tutorial{*tut}, rows)
	assert.Equal(t, "/rest/v1/tutorials", rec.requests[0].Path)
}

func TestTutorialStore_ListMappings(t *testing.T) {
	c, rec := newRecorderClient(t, `[
		{"day":1,"hub_type":"lm_hub","tutorial_id":"t1","order_index":0},
		{"day":1,"hub_type":"lm_hub","tutorial_id":"t2","order_index":1}
	]`)

	got, err := NewTutorialStore(c).ListMappings(context.Background(), 1, model.HubTypeLMHub)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[1].TutorialID)

	q := rec.requests[0].Query
	assert.Equal(t, "eq.1", q["day"])
	assert.Equal(t, "eq.lm_hub", q["hub_type"])
	assert.Equal(t, "order_index.asc,id.asc", q["order"])
	assert.Equal(t, "/rest/v1/day_hub_tutorials", rec.requests[0].Path)
}

// 並び順は配列ボディ1回のPOSTで作成されることを検証
func TestTutorialStore_CreateMappings(t *testing.T) {
	c, rec := newRecorderClient(t)
	mappings := []model.DayHubMapping{
		{Day: 2, HubType: model.HubTypeQuickHub, TutorialID: "a", OrderIndex: 0},
		{Day: 2, HubType: model.HubTypeQuickHub, TutorialID: "b", OrderIndex: 1},
	}

	require.NoError(t, NewTutorialStore(c).CreateMappings(context.Background(), mappings))
	require.Len(t, rec.requests, 1)

	var rows []model.DayHubMapping
	require.NoError(t, json.Unmarshal(rec.requests[0].Body, &rows))
	assert.Equal(t, mappings, rows)
}

func TestTutorialStore_CreateMappings_Empty(t *testing.T) {
	c, rec := newRecorderClient(t)
	require.NoError(t, NewTutorialStore(c).CreateMappings(context.Background(), nil))
	assert.Empty(t, rec.requests)
}

// 上流でコミット済みのINSERTが5xxで返っても再送せず、行が重複しないことを検証
func TestTutorialStore_CreateMappings_NotResentAfterTransientFailure(t *testing.T) {
	var mu sync.Mutex
	posts := 0
	var stored []model.DayHubMapping
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		var rows []model.DayHubMapping
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &rows)
		stored = append(stored, rows...)
		posts++
		if posts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}, 2)

	err := NewTutorialStore(c).CreateMappings(context.Background(), []model.DayHubMapping{
		{Day: 1, HubType: model.HubTypeLMHub, TutorialID: "a", OrderIndex: 0},
		{Day: 1, HubType: model.HubTypeLMHub, TutorialID: "b", OrderIndex: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.Equal(t, 1, posts)
	assert.Len(t, stored, 2)
}

func TestTutorialStore_CreateTutorial_NotResent(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 3)

	err := NewTutorialStore(c).CreateTutorial(context.Background(), &model.Tutorial{ID: "t1", Title: "T"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

// on_conflict付きのUPSERTは再送しても結果が変わらないため再試行されることを検証
func TestProgressStore_UpsertProgress_RetriedOnTransientFailure(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}, 2)

	err := NewProgressStore(c).UpsertProgress(context.Background(), model.ProgressUpdate{
		RiderID:   "478",
		Started:   map[model.ModuleDay]string{model.ModuleDay1: "2024-03-01T09:00:00Z"},
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

// 既存IDへのINSERTはErrDuplicateとして返すことを検証
func TestTutorialStore_CreateTutorial_Duplicate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"tutorials_pkey\""}`))
	}, 0)

	err := NewTutorialStore(c).CreateTutorial(context.Background(), &model.Tutorial{ID: "t1", Title: "T"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NotErrorIs(t, err, repository.ErrUnavailable)
}
