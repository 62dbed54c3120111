// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/perkbot/internal/model"
)

// チャット基盤アダプタが付与するヘッダー
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderChannelID = "X-Channel-ID"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// actorContextKey はリクエストコンテキストに操作者を格納するためのキー。
var actorContextKey = contextKey("actor")

// Actor はイベントを発生させたチャットユーザー。
type Actor struct {
	ID   string
	Name string
}

// NewActorMiddleware はヘッダーから操作者を読み取り、リクエストコンテキストに注入するミドルウェアを返す。
// 表示名が省略された場合はIDを表示名として使う。
// 操作者IDのないリクエストには401 Unauthorizedを返す。
func NewActorMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if id == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
					Code:     "ACTOR_REQUIRED",
					Message:  "actor header is missing",
					Category: "auth",
					Action:   "Forward the chat user id in the " + HeaderActorID + " header.",
				})
				return
			}

			name := strings.TrimSpace(r.Header.Get(HeaderActorName))
			if name == "" {
				name = id
			}

			ctx := ContextWithActor(r.Context(), Actor{ID: id, Name: name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext はリクエストコンテキストから操作者を取得する。
// 操作者ミドルウェアを通過したリクエストでのみ有効。
func ActorFromContext(ctx context.Context) (Actor, error) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, fmt.Errorf("actor not found in context")
	}
	return actor, nil
}

// ContextWithActor はコンテキストに操作者を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
