package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/perkbot/internal/model"
)

// NewChannelMiddleware は許可チャンネル以外からのコマンドを拒否するミドルウェアを返す。
// allowedが空の場合は全チャンネルを許可する。
// 拒否時は通知を出さないため、ボディなしの403を返す。
func NewChannelMiddleware(allowed []string) func(next http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		set[c] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(set) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			channelID := r.Header.Get(HeaderChannelID)
			if _, ok := set[channelID]; !ok {
				slog.Debug("許可されていないチャンネルからのリクエストを無視しました",
					slog.String("code", model.ErrCodeChannelNotAllowed),
					slog.String("channel_id", channelID),
					slog.String("path", r.URL.Path),
				)
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
