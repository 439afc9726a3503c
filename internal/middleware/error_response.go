package middleware

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrorBody は {"error": ...} 形式のエラーレスポンス。
type ErrorBody struct {
	Error   string `json:"error"`
	ErrorID string `json:"error_id,omitempty"`
}

// InternalErrorMessage は500応答で呼び出し元に返す固定メッセージ。
const InternalErrorMessage = "internal server error"

// WriteJSON はvをJSONで書き込む。Content-Typeは常にapplication/json。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスのエンコードに失敗しました", slog.String("error", err.Error()))
	}
}

// WriteError は {"error": message} 形式のエラーレスポンスを書き込む。
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorBody{Error: message})
}

// NewErrorID は500応答とサーバーログを突き合わせるためのIDを採番する。
func NewErrorID() string {
	return uuid.NewString()
}

// WriteInternalServerError は内部エラーの固定レスポンスを書き込む。
// 詳細はerrorIDと共にログのみに記録し、呼び出し元には返さない。
func WriteInternalServerError(w http.ResponseWriter, errorID string) {
	WriteJSON(w, http.StatusInternalServerError, ErrorBody{
		Error:   InternalErrorMessage,
		ErrorID: errorID,
	})
}
