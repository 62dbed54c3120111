package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/perkbot/internal/model"
)

// NewAdminTokenMiddleware は管理者用のBearerトークンを検証するミドルウェアを返す。
// tokenが空の場合は管理者エンドポイントを無効化し、常に404を返す。
func NewAdminTokenMiddleware(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.NotFound(w, r)
				return
			}

			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				attrs := []any{slog.String("path", r.URL.Path)}
				if actor, err := ActorFromContext(r.Context()); err == nil {
					attrs = append(attrs, slog.String("actor_id", actor.ID))
				}
				slog.Warn("admin token rejected", attrs...)

				WriteErrorResponse(w, http.StatusForbidden, model.NewNotAuthorizedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
