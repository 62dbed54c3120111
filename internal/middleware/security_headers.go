package middleware

import "net/http"

// NewSecurityHeadersMiddleware はAPIレスポンスに共通のヘッダーを付与するミドルウェアを返す。
// レスポンスはセッション状態を含むため、中間キャッシュに保存させない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
