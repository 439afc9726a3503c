package handler

import (
	"context"

	"github.com/blitznow/ridertraining/internal/model"
)

// RiderServiceInterface はライダーのオンボーディング日を解決するサービスのインターフェース。
type RiderServiceInterface interface {
	Resolve(ctx context.Context, riderID model.RiderID) (*model.RiderDay, error)
}

// ProgressServiceInterface はトレーニング進捗を扱うサービスのインターフェース。
type ProgressServiceInterface interface {
	GetProgress(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error)
	UpsertProgress(ctx context.Context, riderID model.RiderID, started, completed map[model.ModuleDay]string) error
	ModuleStarted(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error
	ModuleCompleted(ctx context.Context, riderID model.RiderID, day model.ModuleDay, timestamp string) error
	GetTutorialStates(ctx context.Context, riderID model.RiderID) (map[string]model.TutorialState, error)
	UpdateTutorialState(ctx context.Context, riderID model.RiderID, tutorialID string, isDone bool) error
}

// TutorialServiceInterface はチュートリアルと並び順を扱うサービスのインターフェース。
type TutorialServiceInterface interface {
	GetTutorialsForRider(ctx context.Context, riderID model.RiderID) (*model.TutorialFeed, error)
	CreateTutorial(ctx context.Context, t model.Tutorial) (*model.Tutorial, error)
	GetTutorial(ctx context.Context, id string) (*model.Tutorial, error)
	ListTutorials(ctx context.Context) ([]model.Tutorial, error)
	CreateDayHubMappings(ctx context.Context, day int, hubType model.HubType, tutorialIDs []string) (int, error)
	GetMappings(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error)
}
