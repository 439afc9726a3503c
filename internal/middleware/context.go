package middleware

import (
	"context"

	"github.com/blitznow/ridertraining/internal/model"
)

type contextKey string

const requestInfoContextKey contextKey = "request_info"

// requestInfo はリクエスト単位でログに載せる情報。
// ハンドラーがライダーIDを判明後に書き込み、ログミドルウェアが読み出す。
type requestInfo struct {
	requestID string
	riderID   model.RiderID
}

// contextWithRequestInfo はrequestInfoを保持するコンテキストを返す。
func contextWithRequestInfo(ctx context.Context, requestID string) (context.Context, *requestInfo) {
	info := &requestInfo{requestID: requestID}
	return context.WithValue(ctx, requestInfoContextKey, info), info
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoContextKey).(*requestInfo)
	return info
}

// RequestIDFromContext はコンテキストからリクエストIDを取得する。
// RequestIDミドルウェアを通っていない場合は空文字列を返す。
func RequestIDFromContext(ctx context.Context) string {
	if info := requestInfoFromContext(ctx); info != nil {
		return info.requestID
	}
	return ""
}

// SetRiderID はリクエストログに載せるライダーIDを設定する。
func SetRiderID(ctx context.Context, riderID model.RiderID) {
	if info := requestInfoFromContext(ctx); info != nil {
		info.riderID = riderID
	}
}

// RiderIDFromContext はSetRiderIDで設定されたライダーIDを返す。
func RiderIDFromContext(ctx context.Context) model.RiderID {
	if info := requestInfoFromContext(ctx); info != nil {
		return info.riderID
	}
	return ""
}
