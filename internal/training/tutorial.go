package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/blitznow/ridertraining/internal/model"
	"github.com/blitznow/ridertraining/internal/repository"
	"github.com/blitznow/ridertraining/internal/rider"
)

// RiderDayResolver はライダーのオンボーディング日を判定する。
type RiderDayResolver interface {
	Resolve(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error)
}

// TextSanitizer はチュートリアル本文からマークアップを取り除く。
type TextSanitizer interface {
	SanitizeTutorial(t *model.Tutorial)
}

// TutorialService はチュートリアルと並び順のサービス層。
// ライダー向けのチュートリアル一覧の組み立ても担う。
type TutorialService struct {
	store     repository.TutorialStore
	progress  *ProgressService
	resolver  RiderDayResolver
	sanitizer TextSanitizer
	logger    *slog.Logger
	newID     func() string
}

// NewTutorialService はTutorialServiceを生成する。
func NewTutorialService(
	store repository.TutorialStore,
	progress *ProgressService,
	resolver RiderDayResolver,
	sanitizer TextSanitizer,
	logger *slog.Logger,
) *TutorialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TutorialService{
		store:     store,
		progress:  progress,
		resolver:  resolver,
		sanitizer: sanitizer,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// GetTutorialsForRider はライダーの当日分のチュートリアルをorder_index順で返す。
// 日が判定できない場合はRIDER_DAY_UNKNOWN、ライダーがいない場合はRIDER_NOT_FOUNDを返す。
// 日の判定か完了状態の取得をフィクスチャで代替した場合はDegradedを立てる。
func (s *TutorialService) GetTutorialsForRider(ctx context.Context, riderID model.RiderID) (*model.TutorialFeed, error) {
	rd, err := s.resolver.Resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if rd.Day == nil {
		return nil, model.NewRiderDayUnknownError(riderID)
	}
	day := *rd.Day
	hub := rider.HubTrackFor(rd.NodeType)

	mappings, err := s.store.ListMappings(ctx, day, hub)
	if err != nil {
		return nil, storeError("並び順の取得に失敗しました", err)
	}

	feed := &model.TutorialFeed{
		RiderAge:  day,
		Tutorials: []model.TutorialFeedItem{},
		Degraded:  rd.Degraded,
	}
	if len(mappings) == 0 {
		return feed, nil
	}

	states, statesDegraded, err := s.progress.tutorialStates(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if statesDegraded {
		feed.Degraded = true
	}

	for _, m := range mappings {
		t, err := s.store.FindTutorial(ctx, m.TutorialID)
		if err != nil {
			return nil, storeError("チュートリアルの取得に失敗しました", err)
		}
		if t == nil {
			s.logger.DebugContext(ctx, "参照先のないチュートリアルをスキップしました",
				slog.String("tutorial_id", m.TutorialID),
				slog.Int("day", day),
				slog.String("hub_type", string(hub)),
			)
			continue
		}
		feed.Tutorials = append(feed.Tutorials, model.TutorialFeedItem{
			ID:       t.ID,
			Title:    t.Title,
			Subtitle: t.Subtitle,
			IsDone:   states[t.ID].IsDone,
		})
	}

	return feed, nil
}

// CreateTutorial はチュートリアルを作成する。IDが空ならUUIDを採番する。
// title・subtitle・descriptionはマークアップを除去して保存する。
func (s *TutorialService) CreateTutorial(ctx context.Context, t model.Tutorial) (*model.Tutorial, error) {
	if s.sanitizer != nil {
		s.sanitizer.SanitizeTutorial(&t)
	}
	if t.Title == "" {
		return nil, model.NewMissingParameterError("Title is required")
	}
	if t.ID == "" {
		t.ID = s.newID()
	}

	if err := s.store.CreateTutorial(ctx, &t); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewTutorialExistsError(t.ID)
		}
		return nil, storeError("チュートリアルの作成に失敗しました", err)
	}
	return &t, nil
}

// GetTutorial はIDでチュートリアルを返す。
func (s *TutorialService) GetTutorial(ctx context.Context, id string) (*model.Tutorial, error) {
	t, err := s.store.FindTutorial(ctx, id)
	if err != nil {
		return nil, storeError("チュートリアルの取得に失敗しました", err)
	}
	if t == nil {
		return nil, model.NewTutorialNotFoundError(id)
	}
	return t, nil
}

// ListTutorials は全チュートリアルを返す。
func (s *TutorialService) ListTutorials(ctx context.Context) ([]model.Tutorial, error) {
	tutorials, err := s.store.ListTutorials(ctx)
	if err != nil {
		return nil, storeError("チュートリアル一覧の取得に失敗しました", err)
	}
	return tutorials, nil
}

// CreateDayHubMappings はday×hub_typeの並び順を作成する。
// order_indexは入力順の位置（0始まり）になる。作成した行数を返す。
func (s *TutorialService) CreateDayHubMappings(ctx context.Context, day int, hubType model.HubType, tutorialIDs []string) (int, error) {
	if err := validateTrack(day, hubType); err != nil {
		return 0, err
	}
	if len(tutorialIDs) == 0 {
		return 0, model.NewMissingParameterError("Tutorial IDs are required")
	}

	mappings := make([]model.DayHubMapping, len(tutorialIDs))
	for i, id := range tutorialIDs {
		if id == "" {
			return 0, model.NewInvalidRequestError(fmt.Sprintf("tutorial_ids[%d] is empty", i))
		}
		mappings[i] = model.DayHubMapping{
			Day:        day,
			HubType:    hubType,
			TutorialID: id,
			OrderIndex: i,
		}
	}

	if err := s.store.CreateMappings(ctx, mappings); err != nil {
		return 0, storeError("並び順の作成に失敗しました", err)
	}
	return len(mappings), nil
}

// GetMappings はday×hub_typeの並び順をorder_index順で返す。
func (s *TutorialService) GetMappings(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error) {
	if err := validateTrack(day, hubType); err != nil {
		return nil, err
	}
	mappings, err := s.store.ListMappings(ctx, day, hubType)
	if err != nil {
		return nil, storeError("並び順の取得に失敗しました", err)
	}
	return mappings, nil
}

func validateTrack(day int, hubType model.HubType) error {
	if day == 0 || hubType == "" {
		return model.NewMissingParameterError("Day and hub type are required")
	}
	if day < 1 || day > 3 {
		return model.NewInvalidRequestError(fmt.Sprintf("day must be between 1 and 3: %d", day))
	}
	if !hubType.Valid() {
		return model.NewInvalidRequestError(fmt.Sprintf("unsupported hub type: %s", hubType))
	}
	return nil
}
