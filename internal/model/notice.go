package model

// Notice はチャット側に一時表示する通知。
// Ephemeralな通知は操作したユーザーにだけ表示され、DeleteAfter秒後に消える。
type Notice struct {
	Message     string `json:"message"`
	Ephemeral   bool   `json:"ephemeral"`
	DeleteAfter int    `json:"delete_after,omitempty"`
}

// NewNotice は操作したユーザーにだけ表示する通知を生成する。
func NewNotice(message string, deleteAfter int) *Notice {
	return &Notice{Message: message, Ephemeral: true, DeleteAfter: deleteAfter}
}
