package validation

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidChatID is returned when a conversation identifier is empty or
// reduces to a directory token after sanitization.
var ErrInvalidChatID = errors.New("invalid chat id")

// SanitizeChatID reduces a caller-supplied conversation identifier to a safe
// storage key. Any directory components are discarded so the result can never
// escape the storage root. Beyond that the id stays opaque: no case, length
// or symbol policy is imposed here.
func SanitizeChatID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	// clients on some platforms send backslash separators
	s = strings.ReplaceAll(s, "\\", "/")
	s = path.Base(s)
	if s == "" || s == "." || s == ".." || s == "/" {
		return "", ErrInvalidChatID
	}
	return s, nil
}
