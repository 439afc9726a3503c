package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blitznow/ridertraining/internal/database"
	"github.com/blitznow/ridertraining/internal/model"
)

// PostgresTutorialStore はPostgreSQLを使用したチュートリアルストア。
type PostgresTutorialStore struct {
	db *sql.DB
}

// NewPostgresTutorialStore はPostgresTutorialStoreを生成する。
func NewPostgresTutorialStore(db *sql.DB) *PostgresTutorialStore {
	return &PostgresTutorialStore{db: db}
}

// FindTutorial はIDでチュートリアルを取得する。見つからない場合はnilを返す。
func (s *PostgresTutorialStore) FindTutorial(ctx context.Context, id string) (*model.Tutorial, error) {
	t := &model.Tutorial{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, subtitle, description FROM tutorials WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Title, &t.Subtitle, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreError("チュートリアルの取得に失敗しました", err)
	}
	return t, nil
}

// ListTutorials は全チュートリアルをID順で返す。
func (s *PostgresTutorialStore) ListTutorials(ctx context.Context) ([]model.Tutorial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, subtitle, description FROM tutorials ORDER BY id`,
	)
	if err != nil {
		return nil, wrapStoreError("チュートリアル一覧の取得に失敗しました", err)
	}
	defer rows.Close()

	tutorials := []model.Tutorial{}
	for rows.Next() {
		var t model.Tutorial
		if err := rows.Scan(&t.ID, &t.Title, &t.Subtitle, &t.Description); err != nil {
			return nil, fmt.Errorf("チュートリアルのスキャンに失敗しました: %w", err)
		}
		tutorials = append(tutorials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("チュートリアル一覧の読み取りに失敗しました", err)
	}
	return tutorials, nil
}

// CreateTutorial はチュートリアルを作成する。
func (s *PostgresTutorialStore) CreateTutorial(ctx context.Context, t *model.Tutorial) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tutorials (id, title, subtitle, description) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Title, t.Subtitle, t.Description,
	)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("チュートリアルの作成に失敗しました: %w: %w", ErrDuplicate, err)
	}
	if err != nil {
		return wrapStoreError("チュートリアルの作成に失敗しました", err)
	}
	return nil
}

// ListMappings はday×hub_typeの並び順をorder_index昇順で返す。
func (s *PostgresTutorialStore) ListMappings(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, hub_type, tutorial_id, order_index
		 FROM day_hub_tutorials
		 WHERE day = $1 AND hub_type = $2
		 ORDER BY order_index ASC, id ASC`,
		day, string(hubType),
	)
	if err != nil {
		return nil, wrapStoreError("並び順の取得に失敗しました", err)
	}
	defer rows.Close()

	mappings := []model.DayHubMapping{}
	for rows.Next() {
		var m model.DayHubMapping
		var hub string
		if err := rows.Scan(&m.Day, &hub, &m.TutorialID, &m.OrderIndex); err != nil {
			return nil, fmt.Errorf("並び順のスキャンに失敗しました: %w", err)
		}
		m.HubType = model.HubType(hub)
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("並び順の読み取りに失敗しました", err)
	}
	return mappings, nil
}

// CreateMappings は並び順の行を同一トランザクションでまとめて作成する。
func (s *PostgresTutorialStore) CreateMappings(ctx context.Context, mappings []model.DayHubMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreError("トランザクションの開始に失敗しました", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO day_hub_tutorials (day, hub_type, tutorial_id, order_index) VALUES ($1, $2, $3, $4)`,
	)
	if err != nil {
		return fmt.Errorf("ステートメントの準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, m := range mappings {
		if _, err := stmt.ExecContext(ctx, m.Day, string(m.HubType), m.TutorialID, m.OrderIndex); err != nil {
			return wrapStoreError("並び順の作成に失敗しました", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreError("トランザクションのコミットに失敗しました", err)
	}
	return nil
}

// compile-time interface check
var _ TutorialStore = (*PostgresTutorialStore)(nil)
