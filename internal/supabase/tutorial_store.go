package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/blitznow/ridertraining/internal/model"
	"github.com/blitznow/ridertraining/internal/repository"
)

const (
	tutorialsTable = "tutorials"
	mappingsTable  = "day_hub_tutorials"
)

// TutorialStore はテーブルストア上のチュートリアルと並び順のストア。
type TutorialStore struct {
	client *Client
}

// NewTutorialStore はTutorialStoreを生成する。
func NewTutorialStore(client *Client) *TutorialStore {
	return &TutorialStore{client: client}
}

// FindTutorial はIDでチュートリアルを取得する。見つからない場合はnilを返す。
func (s *TutorialStore) FindTutorial(ctx context.Context, id string) (*model.Tutorial, error) {
	body, err := s.client.do(ctx, "find_tutorial", request{
		method: http.MethodGet,
		table:  tutorialsTable,
		query: url.Values{
			"select": {"id,title,subtitle,description"},
			"id":     {"eq." + id},
			"limit":  {"1"},
		},
	})
	if err != nil {
		return nil, err
	}

	var rows []model.Tutorial
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("チュートリアルのデコードに失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListTutorials は全チュートリアルをID順で返す。
func (s *TutorialStore) ListTutorials(ctx context.Context) ([]model.Tutorial, error) {
	body, err := s.client.do(ctx, "list_tutorials", request{
		method: http.MethodGet,
		table:  tutorialsTable,
		query: url.Values{
			"select": {"id,title,subtitle,description"},
			"order":  {"id.asc"},
		},
	})
	if err != nil {
		return nil, err
	}

	tutorials := []model.Tutorial{}
	if err := json.Unmarshal(body, &tutorials); err != nil {
		return nil, fmt.Errorf("チュートリアル一覧のデコードに失敗しました: %w", err)
	}
	return tutorials, nil
}

// CreateTutorial はチュートリアルを作成する。
func (s *TutorialStore) CreateTutorial(ctx context.Context, t *model.Tutorial) error {
	_, err := s.client.do(ctx, "create_tutorial", request{
		method: http.MethodPost,
		table:  tutorialsTable,
		body:   []*model.Tutorial{t},
		prefer: "return=minimal",
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", repository.ErrDuplicate, err)
	}
	return err
}

// ListMappings はday×hub_typeの並び順をorder_index昇順で返す。
func (s *TutorialStore) ListMappings(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error) {
	body, err := s.client.do(ctx, "list_mappings", request{
		method: http.MethodGet,
		table:  mappingsTable,
		query: url.Values{
			"select":   {"day,hub_type,tutorial_id,order_index"},
			"day":      {"eq." + strconv.Itoa(day)},
			"hub_type": {"eq." + string(hubType)},
			"order":    {"order_index.asc,id.asc"},
		},
	})
	if err != nil {
		return nil, err
	}

	mappings := []model.DayHubMapping{}
	if err := json.Unmarshal(body, &mappings); err != nil {
		return nil, fmt.Errorf("並び順のデコードに失敗しました: %w", err)
	}
	return mappings, nil
}

// CreateMappings は並び順の行を1リクエストでまとめて作成する。
// PostgRESTは配列ボディを1文のINSERTで処理するため、全件成功か全件失敗になる。
// 一意キーのない単純なINSERTなので、一時的な障害でも再送しない。
func (s *TutorialStore) CreateMappings(ctx context.Context, mappings []model.DayHubMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	_, err := s.client.do(ctx, "create_mappings", request{
		method: http.MethodPost,
		table:  mappingsTable,
		body:   mappings,
		prefer: "return=minimal",
	})
	return err
}

// compile-time interface check
var _ repository.TutorialStore = (*TutorialStore)(nil)
