package middleware

import "net/http"

// NewSecurityHeadersMiddleware はJSON APIとして最低限のセキュリティヘッダーを付与するミドルウェアを返す。
// 進捗データはライダーごとに異なるため中間キャッシュさせない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
