package selection

import (
	"errors"
	"fmt"
)

// セッション操作のエラー
var (
	ErrNotFound        = errors.New("session not found")
	ErrNotAuthorized   = errors.New("actor is not the session owner")
	ErrExpired         = errors.New("session expired")
	ErrClosed          = errors.New("session closed")
	ErrInvalidPage     = errors.New("page out of range")
	ErrUnknownOption   = errors.New("option is not on the page")
	ErrNothingSelected = errors.New("no perks selected")
	ErrTooManySelected = errors.New("too many perks selected")
)

// OptionError はページに存在しない選択肢を示す。errors.Is(err, ErrUnknownOption) で判定できる。
type OptionError struct {
	Page  int
	Value string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %q is not on page %d", e.Value, e.Page)
}

func (e *OptionError) Unwrap() error {
	return ErrUnknownOption
}
