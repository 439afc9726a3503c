// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/blitznow/ridertraining/internal/model"
)

// ErrUnavailable はバックエンド（DBまたはテーブルストア）に到達できないことを表す。
// 読み取り系はこのエラーを受けてデグレードモードに切り替える。
var ErrUnavailable = errors.New("backing store unavailable")

// ErrCircuitOpen はサーキットブレーカーが開いていて呼び出しを行わなかったことを表す。
// ErrUnavailableと併せてラップされるため、読み取り系はデグレードし、書き込み系は503になる。
var ErrCircuitOpen = errors.New("backing store circuit open")

// ErrDuplicate は一意キーが既存の行と衝突したことを表す。
var ErrDuplicate = errors.New("duplicate key")

// RiderRepository はライダーDB（リードレプリカ）の読み取りインターフェース。
type RiderRepository interface {
	// FindDateOffsets はライダーの所属ノード種別と、ツアー日・作成日までの日数を取得する。
	// 見つからない場合はnilを返す。
	FindDateOffsets(ctx context.Context, riderID model.RiderID) (*model.RiderDateOffsets, error)
}

// ProgressStore はライダーごとの進捗レコードの永続化インターフェース。
// 実装は1ライダー1行の不変条件をアトミックなUPSERTで保証すること。
type ProgressStore interface {
	// FindProgress は進捗レコードを取得する。見つからない場合はnilを返す。
	FindProgress(ctx context.Context, riderID model.RiderID) (*model.TrainingProgress, error)

	// UpsertProgress は指定された列のみを更新し、レコードがなければ作成する。
	UpsertProgress(ctx context.Context, update model.ProgressUpdate) error

	// SetTutorialState はtutorial_stateの1キーを設定し、レコードがなければ作成する。
	SetTutorialState(ctx context.Context, riderID model.RiderID, state model.TutorialState, updatedAt time.Time) error
}

// TutorialStore はチュートリアルとday×hub_typeの並び順の永続化インターフェース。
type TutorialStore interface {
	// FindTutorial はIDでチュートリアルを取得する。見つからない場合はnilを返す。
	FindTutorial(ctx context.Context, id string) (*model.Tutorial, error)

	// ListTutorials は全チュートリアルをID順で返す。
	ListTutorials(ctx context.Context) ([]model.Tutorial, error)

	// CreateTutorial はチュートリアルを作成する。IDが既に存在する場合はErrDuplicateを返す。
	CreateTutorial(ctx context.Context, tutorial *model.Tutorial) error

	// ListMappings はday×hub_typeの並び順をorder_index昇順で返す。
	ListMappings(ctx context.Context, day int, hubType model.HubType) ([]model.DayHubMapping, error)

	// CreateMappings は並び順の行をまとめて作成する。
	CreateMappings(ctx context.Context, mappings []model.DayHubMapping) error
}
