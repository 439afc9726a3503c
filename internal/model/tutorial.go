package model

// Tutorial は静的なチュートリアルコンテンツ。
type Tutorial struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
}

// DayHubMapping はday×hub_typeごとのチュートリアルの並び順1行分。
type DayHubMapping struct {
	Day        int     `json:"day"`
	HubType    HubType `json:"hub_type"`
	TutorialID string  `json:"tutorial_id"`
	OrderIndex int     `json:"order_index"`
}

// TutorialFeedItem はライダー向けチュートリアル一覧の1件。
type TutorialFeedItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	IsDone   bool   `json:"isDone"`
}

// TutorialFeed はライダーの当日分チュートリアル一覧。
// Degradedは日の判定か完了状態のどちらかをフィクスチャで代替したことを示す。
type TutorialFeed struct {
	RiderAge  int                `json:"rider_age"`
	Tutorials []TutorialFeedItem `json:"tutorials"`
	Degraded  bool               `json:"degraded,omitempty"`
}
