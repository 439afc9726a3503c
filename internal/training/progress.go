// Package training は進捗レコードとチュートリアルのドメインロジックを提供する。
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blitznow/ridertraining/internal/metrics"
	"github.com/blitznow/ridertraining/internal/model"
	"github.com/blitznow/ridertraining/internal/repository"
)

// ProgressService は進捗レコードのサービス層。
type ProgressService struct {
	store    repository.ProgressStore
	degraded bool
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// NewProgressService はProgressServiceを生成する。
// degradedModeが有効な場合、読み取り系はストアに接続できなければ空のレコードで応答する。
func NewProgressService(store repository.ProgressStore, degradedMode bool, m metrics.MetricsCollector, logger *slog.Logger) *ProgressService {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressService{
		store:    store,
		degraded: degradedMode,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// GetProgress はライダーの進捗レコードを返す。
// レコードがない場合はPROGRESS_NOT_FOUNDのAPIErrorを返す。
func (s *ProgressService) GetProgress(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error) {
	if riderID.IsZero() {
		return nil, model.NewMissingParameterError("Rider ID is required")
	}

	p, err := s.store.FindProgress(ctx, riderID)
	if err != nil {
		if s.shouldDegrade(ctx, "progress", riderID, err) {
			return ProgressFixture(riderID), nil
		}
		return nil, storeError("進捗レコードの取得に失敗しました", err)
	}
	if p == nil {
		return nil, model.NewProgressNotFoundError()
	}
	return p, nil
}

// UpsertProgress はモジュールの開始・完了日時をマージして書き込む。
// day1〜day3以外のキーは無視し、updated_atは常に更新する。
func (s *ProgressService) UpsertProgress(ctx context.Context, riderID model.RiderID, started, completed map[model.ModuleDay]string) error {
	if riderID.IsZero() {
		return model.NewMissingParameterError("Rider ID is required")
	}

	update := model.ProgressUpdate{
		RiderID:   riderID,
		Started:   started,
		Completed: completed,
		UpdatedAt: s.now(),
	}
	if err := s.store.UpsertProgress(ctx, update); err != nil {
		return storeError("進捗レコードの更新に失敗しました", err)
	}
	return nil
}

// ModuleStarted はモジュール開始日時を記録する。timestampが空なら現在時刻を使う。
func (s *ProgressService) ModuleStarted(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error {
	if riderID.IsZero() || day == "" {
		return model.NewMissingParameterError("Rider ID and day are required")
	}
	return s.UpsertProgress(ctx, riderID, map[model.ModuleDay]string{day: s.timestampOrNow(timestamp)}, nil)
}

// ModuleCompleted はモジュール完了日時を記録する。timestampが空なら現在時刻を使う。
func (s *ProgressService) ModuleCompleted(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error {
	if riderID.IsZero() || day == "" {
		return model.NewMissingParameterError("Rider ID and day are required")
	}
	return s.UpsertProgress(ctx, riderID, nil, map[model.ModuleDay]string{day: s.timestampOrNow(timestamp)})
}

// GetTutorialStates はライダーのtutorial_stateを返す。レコードがなければ空マップ。
func (s *ProgressService) GetTutorialStates(ctx context.Context, riderID model.RiderID) (map[string]model.TutorialState, error) {
	states, _, err := s.tutorialStates(ctx, riderID)
	return states, err
}

// tutorialStates はtutorial_stateと、空マップで代替したかどうかを返す。
func (s *ProgressService) tutorialStates(ctx context.Context, riderID model.RiderID) (map[string]model.TutorialState, bool, error) {
	if riderID.IsZero() {
		return nil, false, model.NewMissingParameterError("Rider ID is required")
	}

	p, err := s.store.FindProgress(ctx, riderID)
	if err != nil {
		if s.shouldDegrade(ctx, "tutorial_state", riderID, err) {
			return map[string]model.TutorialState{}, true, nil
		}
		return nil, false, storeError("チュートリアル状態の取得に失敗しました", err)
	}
	if p == nil || p.TutorialState == nil {
		return map[string]model.TutorialState{}, false, nil
	}
	return p.TutorialState, false, nil
}

// UpdateTutorialState はチュートリアル1件の完了状態を設定する。
func (s *ProgressService) UpdateTutorialState(ctx context.Context, riderID model.RiderID, tutorialID string, isDone bool) error {
	if riderID.IsZero() || tutorialID == "" {
		return model.NewMissingParameterError("Rider ID and tutorial ID are required")
	}

	state := model.TutorialState{ID: tutorialID, IsDone: isDone}
	if err := s.store.SetTutorialState(ctx, riderID, state, s.now()); err != nil {
		return storeError("チュートリアル状態の更新に失敗しました", err)
	}
	return nil
}

func (s *ProgressService) timestampOrNow(ts string) string {
	if ts != "" {
		return ts
	}
	return s.now().UTC().Format(time.RFC3339Nano)
}

// shouldDegrade は読み取り失敗をフィクスチャで代替すべきかを判定し、代替する場合は記録する。
func (s *ProgressService) shouldDegrade(ctx context.Context, component string, riderID model.RiderID, err error) bool {
	if !s.degraded || !errors.Is(err, repository.ErrUnavailable) {
		return false
	}
	s.logger.WarnContext(ctx, "ストアに接続できないためフィクスチャで応答します",
		slog.Bool("degraded", true),
		slog.String("component", component),
		slog.String("rider_id", riderID.String()),
		slog.String("error", err.Error()),
	)
	s.metrics.RecordDegraded(component)
	return true
}

// ProgressFixture はデグレードモードで返す空の進捗レコード。
func ProgressFixture(riderID model.RiderID) *model.TrainingProgress {
	return &model.TrainingProgress{
		RiderID:       riderID,
		TutorialState: map[string]model.TutorialState{},
		Degraded:      true,
	}
}

// storeError はストアのエラーをラップする。
// サーキットブレーカーが開いている場合は503として返せるようAPIErrorに変換する。
func storeError(msg string, err error) error {
	if errors.Is(err, repository.ErrCircuitOpen) {
		return model.NewStoreUnavailableError()
	}
	return fmt.Errorf("%s: %w", msg, err)
}
