package middleware

import "net/http"

// CORSAllowHeaders はブラウザから送信を許可するリクエストヘッダー。
const CORSAllowHeaders = "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token"

// CORSAllowMethods は許可するメソッド。
const CORSAllowMethods = "GET,POST,OPTIONS"

// SetCORSHeaders は全レスポンス共通のCORSヘッダーとContent-Typeを設定する。
func SetCORSHeaders(h http.Header, allowedOrigin string) {
	h.Set("Content-Type", "application/json")
	h.Set("Access-Control-Allow-Origin", allowedOrigin)
	h.Set("Access-Control-Allow-Headers", CORSAllowHeaders)
	h.Set("Access-Control-Allow-Methods", CORSAllowMethods)
}

// NewCORSMiddleware は全レスポンスにCORSヘッダーを付与するミドルウェアを返す。
// OPTIONSプリフライトはパスに関わらず200と確認用のJSONで応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetCORSHeaders(w.Header(), allowedOrigin)

			if r.Method == http.MethodOptions {
				WriteJSON(w, http.StatusOK, map[string]string{"message": "CORS preflight"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
