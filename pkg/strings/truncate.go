// Package strings holds text helpers shared by the renderers.
package strings

import (
	"strings"
)

// minTruncateLen leaves room for one rune plus the ellipsis.
const minTruncateLen = 4

// Truncate folds s onto a single line, collapsing any run of whitespace into
// one space, and cuts it to maxLen runes with a trailing "..." when longer.
// A maxLen below 4 is treated as 4.
func Truncate(s string, maxLen int) string {
	maxLen = max(maxLen, minTruncateLen)

	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
