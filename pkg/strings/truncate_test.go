package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world this is long", 15, "hello world ..."},
		{"newlines", "hello\nworld", 20, "hello world"},
		{"whitespace runs", "a\n\n\tb   c", 20, "a b c"},
		{"leading and trailing", "  padded  ", 20, "padded"},
		{"runes not bytes", "héllo wörld", 8, "héllo..."},
		{"clamped", "abcdefgh", 1, "a..."},
		{"empty", "", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.input, tt.maxLen))
		})
	}
}
