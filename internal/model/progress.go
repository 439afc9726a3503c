package model

import "time"

// ModuleDay はトレーニングモジュールの日を表すキー（day1〜day3）。
type ModuleDay string

const (
	ModuleDay1 ModuleDay = "day1"
	ModuleDay2 ModuleDay = "day2"
	ModuleDay3 ModuleDay = "day3"
)

// ModuleDays は進捗レコードが列を持つ全ての日。
var ModuleDays = []ModuleDay{ModuleDay1, ModuleDay2, ModuleDay3}

// Valid はModuleDayが進捗レコードの列に対応するかどうかを返す。
func (d ModuleDay) Valid() bool {
	for _, v := range ModuleDays {
		if d == v {
			return true
		}
	}
	return false
}

// StartedColumn はモジュール開始日時の列名を返す。
func (d ModuleDay) StartedColumn() string {
	return "module_started_" + string(d)
}

// CompletedColumn はモジュール完了日時の列名を返す。
func (d ModuleDay) CompletedColumn() string {
	return "module_completed_" + string(d)
}

// TutorialState はチュートリアル1件の完了状態。
type TutorialState struct {
	ID     string `json:"id"`
	IsDone bool   `json:"isDone"`
}

// TrainingProgress はライダーごとに1行だけ存在する進捗レコード。
// タイムスタンプはクライアントが送った値をそのまま保持する。
type TrainingProgress struct {
	RiderID             RiderID                  `json:"rider_id"`
	ModuleStartedDay1   *string                  `json:"module_started_day1"`
	ModuleStartedDay2   *string                  `json:"module_started_day2"`
	ModuleStartedDay3   *string                  `json:"module_started_day3"`
	ModuleCompletedDay1 *string                  `json:"module_completed_day1"`
	ModuleCompletedDay2 *string                  `json:"module_completed_day2"`
	ModuleCompletedDay3 *string                  `json:"module_completed_day3"`
	TutorialState       map[string]TutorialState `json:"tutorial_state"`
	UpdatedAt           *string                  `json:"updated_at"`
	// Degraded はストアに接続できずフィクスチャで代替した場合にtrueになる。
	Degraded bool `json:"degraded,omitempty"`
}

// ProgressUpdate は進捗レコードへの部分更新。
// StartedとCompletedのday1〜day3以外のキーは無視される。
type ProgressUpdate struct {
	RiderID   RiderID
	Started   map[ModuleDay]string
	Completed map[ModuleDay]string
	UpdatedAt time.Time
}

// Columns は更新対象の列名と値を返す。updated_atは常に含まれる。
// 列名は固定の許可リストからのみ生成される。
func (u ProgressUpdate) Columns() map[string]string {
	cols := make(map[string]string, len(u.Started)+len(u.Completed)+1)
	for day, ts := range u.Started {
		if day.Valid() {
			cols[day.StartedColumn()] = ts
		}
	}
	for day, ts := range u.Completed {
		if day.Valid() {
			cols[day.CompletedColumn()] = ts
		}
	}
	cols["updated_at"] = u.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return cols
}

// ProgressColumns は進捗レコードのタイムスタンプ列の一覧を固定順で返す。
func ProgressColumns() []string {
	cols := make([]string, 0, len(ModuleDays)*2)
	for _, d := range ModuleDays {
		cols = append(cols, d.StartedColumn())
	}
	for _, d := range ModuleDays {
		cols = append(cols, d.CompletedColumn())
	}
	return cols
}
