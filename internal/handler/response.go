// Package handler はチャット基盤アダプタ向けのHTTPインタラクションAPIを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/perkbot/internal/middleware"
	"github.com/hitoshi/perkbot/internal/model"
)

// noticeResponse は通知だけを返すレスポンス。
type noticeResponse struct {
	Notice *model.Notice `json:"notice"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// decodeBody はリクエストボディをデコードする。空ボディは許可する。
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// actorFrom はリクエストの操作者を取得する。取得できない場合は401を書き込みfalseを返す。
func actorFrom(w http.ResponseWriter, r *http.Request) (middleware.Actor, bool) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "ACTOR_REQUIRED",
			Message:  "actor header is missing",
			Category: "auth",
			Action:   "Forward the chat user id in the " + middleware.HeaderActorID + " header.",
		})
		return middleware.Actor{}, false
	}
	return actor, true
}

// writeInvalidRequest はリクエスト不正の400レスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter, reason string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
}

// handleServiceError はサービス層のエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeNotAuthorized, model.ErrCodeChannelNotAllowed:
		return http.StatusForbidden
	case model.ErrCodeSessionNotFound, model.ErrCodePerkNotFound:
		return http.StatusNotFound
	case model.ErrCodeSessionClosed, model.ErrCodeNoPerksAvailable:
		return http.StatusConflict
	case model.ErrCodeSessionExpired:
		return http.StatusGone
	case model.ErrCodeValidationFailed, model.ErrCodeSchemaInvalid, model.ErrCodeEmptySource:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSourceUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeStorageFault:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
