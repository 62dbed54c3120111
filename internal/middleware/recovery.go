package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500レスポンスを返すミドルウェアを生成する。
// 1つのイベント処理の失敗でボット全体が止まらないようにする。
// どの操作者のどのイベントで落ちたかを追えるよう、actor_idとchannel_idも記録する。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// 最も外側で動くため、操作者はコンテキストではなくヘッダーから読む
					slog.Error("イベント処理中にpanicが発生しました",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("actor_id", r.Header.Get(HeaderActorID)),
						slog.String("channel_id", r.Header.Get(HeaderChannelID)),
						slog.String("stack", string(debug.Stack())),
					)
					WriteInternalServerError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
