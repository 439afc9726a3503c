package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/blitznow/ridertraining/internal/database"
	"github.com/blitznow/ridertraining/internal/model"
)

// PostgresProgressStore はPostgreSQLを使用した進捗レコードストア。
// rider_idのPRIMARY KEYとINSERT ON CONFLICTで1ライダー1行を保証する。
type PostgresProgressStore struct {
	db *sql.DB
}

// NewPostgresProgressStore はPostgresProgressStoreを生成する。
func NewPostgresProgressStore(db *sql.DB) *PostgresProgressStore {
	return &PostgresProgressStore{db: db}
}

// allowedProgressColumns はUPSERTで書き込みを許可する列。
var allowedProgressColumns = func() map[string]bool {
	m := map[string]bool{"updated_at": true}
	for _, c := range model.ProgressColumns() {
		m[c] = true
	}
	return m
}()

// FindProgress は進捗レコードを取得する。見つからない場合はnilを返す。
func (s *PostgresProgressStore) FindProgress(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error) {
	p := &model.TrainingProgress{}
	var (
		started   [3]sql.NullString
		completed [3]sql.NullString
		updatedAt sql.NullString
		stateRaw  []byte
		id        string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT rider_id,
		        module_started_day1, module_started_day2, module_started_day3,
		        module_completed_day1, module_completed_day2, module_completed_day3,
		        tutorial_state, updated_at
		 FROM training_progress WHERE rider_id = $1`,
		riderID.String(),
	).Scan(
		&id,
		&started[0], &started[1], &started[2],
		&completed[0], &completed[1], &completed[2],
		&stateRaw, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreError("進捗レコードの取得に失敗しました", err)
	}

	p.RiderID = model.RiderID(id)
	p.ModuleStartedDay1 = nullStringPtr(started[0])
	p.ModuleStartedDay2 = nullStringPtr(started[1])
	p.ModuleStartedDay3 = nullStringPtr(started[2])
	p.ModuleCompletedDay1 = nullStringPtr(completed[0])
	p.ModuleCompletedDay2 = nullStringPtr(completed[1])
	p.ModuleCompletedDay3 = nullStringPtr(completed[2])
	p.UpdatedAt = nullStringPtr(updatedAt)

	p.TutorialState = map[string]model.TutorialState{}
	if len(stateRaw) > 0 {
		if err := json.Unmarshal(stateRaw, &p.TutorialState); err != nil {
			return nil, fmt.Errorf("tutorial_stateのデコードに失敗しました: %w", err)
		}
	}

	return p, nil
}

// UpsertProgress は指定された列だけを1文のINSERT ON CONFLICTで書き込む。
// 既存レコードの他の列は変更しない。
func (s *PostgresProgressStore) UpsertProgress(ctx context.Context, update model.ProgressUpdate) error {
	cols := update.Columns()

	names := make([]string, 0, len(cols))
	for name := range cols {
		if !allowedProgressColumns[name] {
			return fmt.Errorf("unexpected progress column: %s", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	insertCols := []string{"rider_id"}
	placeholders := []string{"$1"}
	sets := make([]string, 0, len(names))
	args := []any{update.RiderID.String()}
	for i, name := range names {
		quoted := pq.QuoteIdentifier(name)
		insertCols = append(insertCols, quoted)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted))
		args = append(args, cols[name])
	}

	query := fmt.Sprintf(
		`INSERT INTO training_progress (%s) VALUES (%s)
		 ON CONFLICT (rider_id) DO UPDATE SET %s`,
		strings.Join(insertCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapStoreError("進捗レコードのUPSERTに失敗しました", err)
	}
	return nil
}

// SetTutorialState はtutorial_stateの1キーをJSONBの結合で上書きする。
// 読み取りを挟まない1文のため、同一ライダーへの同時更新でもキーが失われない。
func (s *PostgresProgressStore) SetTutorialState(ctx context.Context, riderID model.RiderID, state model.TutorialState, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_progress (rider_id, tutorial_state, updated_at)
		 VALUES ($1, jsonb_build_object($2::text, jsonb_build_object('id', $2::text, 'isDone', $3::boolean)), $4)
		 ON CONFLICT (rider_id) DO UPDATE SET
		     tutorial_state = training_progress.tutorial_state || EXCLUDED.tutorial_state,
		     updated_at = EXCLUDED.updated_at`,
		riderID.String(), state.ID, state.IsDone, updatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return wrapStoreError("チュートリアル状態の更新に失敗しました", err)
	}
	return nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// wrapStoreError は接続障害をErrUnavailableとして区別できるようにラップする。
func wrapStoreError(msg string, err error) error {
	if database.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", msg, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// compile-time interface check
var _ ProgressStore = (*PostgresProgressStore)(nil)
