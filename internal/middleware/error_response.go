package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/perkbot/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// チャット側では一時通知として表示し、delete_after秒後に消す。
type ErrorResponseBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Category    string `json:"category"`
	Action      string `json:"action"`
	Ephemeral   bool   `json:"ephemeral"`
	DeleteAfter int    `json:"delete_after,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:        apiErr.Code,
		Message:     apiErr.Message,
		Category:    apiErr.Category,
		Action:      apiErr.Action,
		Ephemeral:   true,
		DeleteAfter: apiErr.DeleteAfter,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:        "INTERNAL_ERROR",
		Message:     "An unexpected error occurred.",
		Category:    "system",
		Action:      "Please try again later.",
		DeleteAfter: model.NoticeLong,
	})
}
