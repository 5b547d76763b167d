package validation

import (
	"errors"
	"testing"
)

func TestSanitizeChatID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"user42", "user42"},
		{"  user42  ", "user42"},
		{"a/b/c", "c"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows`, "windows"},
		{"chat.2024", "chat.2024"},
		{"trailing/", "trailing"},
	}
	for _, c := range cases {
		got, err := SanitizeChatID(c.in)
		if err != nil {
			t.Fatalf("SanitizeChatID(%q): unexpected error %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("SanitizeChatID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeChatID_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", ".", "..", "/", "a/..", `\`} {
		if _, err := SanitizeChatID(in); !errors.Is(err, ErrInvalidChatID) {
			t.Fatalf("SanitizeChatID(%q): expected ErrInvalidChatID, got %v", in, err)
		}
	}
}
