package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// チャット側には一時的な通知として表示されるため、表示秒数を併せて持つ。
type APIError struct {
	Code        string // エラーコード
	Message     string // エラーメッセージ
	Category    string // カテゴリ: ingest, validation, auth, session, system
	Action      string // ユーザー向け対処方法
	DeleteAfter int    // 通知を自動削除するまでの秒数
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	ErrCodeSchemaInvalid     = "SCHEMA_INVALID"
	ErrCodeEmptySource       = "EMPTY_SOURCE"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeNotAuthorized     = "NOT_AUTHORIZED"
	ErrCodeStorageFault      = "STORAGE_FAULT"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeSessionExpired    = "SESSION_EXPIRED"
	ErrCodeSessionClosed     = "SESSION_CLOSED"
	ErrCodeNoPerksAvailable  = "NO_PERKS_AVAILABLE"
	ErrCodePerkNotFound      = "PERK_NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeChannelNotAllowed = "CHANNEL_NOT_ALLOWED"
)

// 通知の表示秒数
const (
	NoticeShort   = 2
	NoticeDefault = 5
	NoticeLong    = 10
)

// NewSourceUnavailableError はパーク定義の取得失敗エラーを生成する。
func NewSourceUnavailableError(reason string) *APIError {
	return &APIError{
		Code:        ErrCodeSourceUnavailable,
		Message:     fmt.Sprintf("Could not fetch the perk source: %s", reason),
		Category:    "ingest",
		Action:      "Check the configured perk source and try again later.",
		DeleteAfter: NoticeLong,
	}
}

// NewSchemaInvalidError は必須列の欠落エラーを生成する。
func NewSchemaInvalidError(reason string) *APIError {
	return &APIError{
		Code:        ErrCodeSchemaInvalid,
		Message:     fmt.Sprintf("The perk source is not in the expected format: %s", reason),
		Category:    "ingest",
		Action:      "The sheet must contain Name, Type, Specialization and Specialization Effects columns.",
		DeleteAfter: NoticeLong,
	}
}

// NewEmptySourceError は有効な行が1件もないエラーを生成する。
func NewEmptySourceError() *APIError {
	return &APIError{
		Code:        ErrCodeEmptySource,
		Message:     "The perk source contains no complete rows.",
		Category:    "ingest",
		Action:      "Fill in every required column for at least one perk.",
		DeleteAfter: NoticeLong,
	}
}

// NewTooManyPerksError は選択数の上限超過エラーを生成する。
func NewTooManyPerksError(max int) *APIError {
	return &APIError{
		Code:        ErrCodeValidationFailed,
		Message:     fmt.Sprintf("[Error] You can select up to %d perks.", max),
		Category:    "validation",
		Action:      "Deselect some perks and submit again.",
		DeleteAfter: NoticeDefault,
	}
}

// NewNoPerksSelectedError は選択が空のまま送信された場合のエラーを生成する。
func NewNoPerksSelectedError() *APIError {
	return &APIError{
		Code:        ErrCodeValidationFailed,
		Message:     "[Error] You must select at least one perk.",
		Category:    "validation",
		Action:      "Select at least one perk and submit again.",
		DeleteAfter: NoticeDefault,
	}
}

// NewUnknownOptionError はページに存在しない選択肢が送られた場合のエラーを生成する。
func NewUnknownOptionError(value string) *APIError {
	return &APIError{
		Code:        ErrCodeValidationFailed,
		Message:     fmt.Sprintf("[Error] %q is not an option on this page.", value),
		Category:    "validation",
		Action:      "Choose perks from the list shown on this page.",
		DeleteAfter: NoticeDefault,
	}
}

// NewNotAuthorizedError はセッション所有者以外の操作エラーを生成する。
func NewNotAuthorizedError() *APIError {
	return &APIError{
		Code:        ErrCodeNotAuthorized,
		Message:     "This interaction is not for you.",
		Category:    "auth",
		Action:      "Run the command yourself to open your own prompt.",
		DeleteAfter: NoticeDefault,
	}
}

// NewStorageFaultError は永続化層の障害エラーを生成する。
func NewStorageFaultError(operation string) *APIError {
	return &APIError{
		Code:        ErrCodeStorageFault,
		Message:     fmt.Sprintf("An error occurred while %s.", operation),
		Category:    "system",
		Action:      "Please try again later.",
		DeleteAfter: NoticeLong,
	}
}

// NewSessionNotFoundError はセッションが存在しない場合のエラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:        ErrCodeSessionNotFound,
		Message:     fmt.Sprintf("Prompt not found: %s", sessionID),
		Category:    "session",
		Action:      "Run the command again to open a new prompt.",
		DeleteAfter: NoticeDefault,
	}
}

// NewSessionExpiredError はタイムアウト済みセッションへの操作エラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:        ErrCodeSessionExpired,
		Message:     "This prompt has timed out.",
		Category:    "session",
		Action:      "Run the command again to open a new prompt.",
		DeleteAfter: NoticeDefault,
	}
}

// NewSessionClosedError は確定またはキャンセル済みセッションへの操作エラーを生成する。
func NewSessionClosedError() *APIError {
	return &APIError{
		Code:        ErrCodeSessionClosed,
		Message:     "This prompt is already closed.",
		Category:    "session",
		Action:      "Run the command again to open a new prompt.",
		DeleteAfter: NoticeDefault,
	}
}

// NewNoPerksAvailableError はカタログが空の場合のエラーを生成する。
func NewNoPerksAvailableError() *APIError {
	return &APIError{
		Code:        ErrCodeNoPerksAvailable,
		Message:     "[Info] No perks available at the moment",
		Category:    "session",
		Action:      "Wait for the next catalog refresh.",
		DeleteAfter: NoticeDefault,
	}
}

// NewPerkNotFoundError はパーク情報が見つからない場合のエラーを生成する。
func NewPerkNotFoundError() *APIError {
	return &APIError{
		Code:        ErrCodePerkNotFound,
		Message:     "Perk information not found.",
		Category:    "validation",
		Action:      "The perk may have been removed by a catalog refresh.",
		DeleteAfter: NoticeDefault,
	}
}

// NewInvalidRequestError はリクエストボディ不正のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:        ErrCodeInvalidRequest,
		Message:     fmt.Sprintf("Invalid request: %s", reason),
		Category:    "validation",
		Action:      "Send a well-formed JSON body.",
		DeleteAfter: NoticeDefault,
	}
}
