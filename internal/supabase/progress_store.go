package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/blitznow/ridertraining/internal/model"
	"github.com/blitznow/ridertraining/internal/repository"
)

const progressTable = "training_progress"

// upsertPrefer はrider_idの一意制約を使ったINSERT ON CONFLICT DO UPDATEを指示する。
// PostgRESTはペイロードに含まれる列だけを更新する。
const upsertPrefer = "resolution=merge-duplicates,return=minimal"

// ProgressStore はテーブルストア上の進捗レコードストア。
type ProgressStore struct {
	client *Client
}

// NewProgressStore はProgressStoreを生成する。
func NewProgressStore(client *Client) *ProgressStore {
	return &ProgressStore{client: client}
}

// FindProgress は進捗レコードを取得する。見つからない場合はnilを返す。
func (s *ProgressStore) FindProgress(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error) {
	body, err := s.client.do(ctx, "find_progress", request{
		method: http.MethodGet,
		table:  progressTable,
		query: url.Values{
			"select":   {"*"},
			"rider_id": {"eq." + riderID.String()},
			"limit":    {"1"},
		},
	})
	if err != nil {
		return nil, err
	}

	var rows []model.TrainingProgress
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("進捗レコードのデコードに失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	p := rows[0]
	if p.TutorialState == nil {
		p.TutorialState = map[string]model.TutorialState{}
	}
	return &p, nil
}

// UpsertProgress は指定された列だけをon_conflict=rider_idのUPSERTで書き込む。
func (s *ProgressStore) UpsertProgress(ctx context.Context, update model.ProgressUpdate) error {
	row := map[string]any{"rider_id": update.RiderID}
	for col, v := range update.Columns() {
		row[col] = v
	}

	_, err := s.client.do(ctx, "upsert_progress", request{
		method:     http.MethodPost,
		table:      progressTable,
		query:      url.Values{"on_conflict": {"rider_id"}},
		body:       []map[string]any{row},
		prefer:     upsertPrefer,
		idempotent: true,
	})
	return err
}

// SetTutorialState はtutorial_stateの1キーを設定する。
// PostgRESTではJSONBの部分更新ができないため現在値を読んでから全体を書き戻す。
// 行の作成はUPSERTなので重複しないが、同一ライダーの別キーへの同時更新は後勝ちになる。
func (s *ProgressStore) SetTutorialState(ctx context.Context, riderID model.RiderID, state model.TutorialState, updatedAt time.Time) error {
	current, err := s.FindProgress(ctx, riderID)
	if err != nil {
		return err
	}

	states := map[string]model.TutorialState{}
	if current != nil {
		for k, v := range current.TutorialState {
			states[k] = v
		}
	}
	states[state.ID] = state

	row := map[string]any{
		"rider_id":       riderID,
		"tutorial_state": states,
		"updated_at":     updatedAt.UTC().Format(time.RFC3339Nano),
	}

	_, err = s.client.do(ctx, "set_tutorial_state", request{
		method:     http.MethodPost,
		table:      progressTable,
		query:      url.Values{"on_conflict": {"rider_id"}},
		body:       []map[string]any{row},
		prefer:     upsertPrefer,
		idempotent: true,
	})
	return err
}

// compile-time interface check
var _ repository.ProgressStore = (*ProgressStore)(nil)
