package model

import "fmt"

// APIError はハンドラーがHTTPステータスに変換するドメインエラー。
type APIError struct {
	Code     string // エラーコード
	Message  string // 呼び出し元に返すメッセージ
	Category string // カテゴリ: validation, rider, progress, tutorial, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeRiderDayUnknown  = "RIDER_DAY_UNKNOWN"
	ErrCodeRiderNotFound    = "RIDER_NOT_FOUND"
	ErrCodeProgressNotFound = "PROGRESS_NOT_FOUND"
	ErrCodeTutorialNotFound = "TUTORIAL_NOT_FOUND"
	ErrCodeTutorialExists   = "TUTORIAL_EXISTS"
	ErrCodeUnknownAction    = "UNKNOWN_ACTION"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// NewMissingParameterError は必須パラメータ欠落エラーを生成する。
// messageはクライアントがそのまま表示する既存の文言を渡す。
func NewMissingParameterError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameter,
		Message:  message,
		Category: "validation",
	}
}

// NewInvalidRequestError はリクエスト内容の不備を表すエラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
	}
}

// NewRiderNotFoundError はライダー未検出エラーを生成する。
func NewRiderNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRiderNotFound,
		Message:  "Rider not found",
		Category: "rider",
	}
}

// NewRiderDayUnknownError はオンボーディング日が判定できない場合のエラーを生成する。
func NewRiderDayUnknownError(riderID RiderID) *APIError {
	return &APIError{
		Code:     ErrCodeRiderDayUnknown,
		Message:  fmt.Sprintf("Rider day could not be determined for rider %s", riderID),
		Category: "rider",
	}
}

// NewProgressNotFoundError は進捗レコード未検出エラーを生成する。
func NewProgressNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProgressNotFound,
		Message:  "Progress not found",
		Category: "progress",
	}
}

// NewTutorialNotFoundError はチュートリアル未検出エラーを生成する。
func NewTutorialNotFoundError(tutorialID string) *APIError {
	return &APIError{
		Code:     ErrCodeTutorialNotFound,
		Message:  fmt.Sprintf("Tutorial not found: %s", tutorialID),
		Category: "tutorial",
	}
}

// NewTutorialExistsError は同じIDのチュートリアルが既に存在する場合のエラーを生成する。
func NewTutorialExistsError(tutorialID string) *APIError {
	return &APIError{
		Code:     ErrCodeTutorialExists,
		Message:  fmt.Sprintf("Tutorial already exists: %s", tutorialID),
		Category: "tutorial",
	}
}

// NewUnknownActionError は未対応のactionが指定された場合のエラーを生成する。
func NewUnknownActionError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownAction,
		Message:  fmt.Sprintf("unknown action: %s", action),
		Category: "validation",
	}
}

// NewStoreUnavailableError はテーブルストアへの呼び出しが遮断されている場合のエラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "Progress store is temporarily unavailable",
		Category: "system",
	}
}
