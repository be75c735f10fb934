package shell

import (
	"strings"

	"deltactl/internal/shell/commands"
)

// completer completes command names, then delegates to the command.
type completer struct {
	registry *commands.Registry
}

// Do implements readline.AutoCompleter. It returns the suffixes that complete
// the word under the cursor and the length of that word.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	input := strings.TrimLeft(string(line[:pos]), " ")
	word := input
	if i := strings.LastIndexByte(input, ' '); i >= 0 {
		word = input[i+1:]
	}

	var candidates []string
	name, _, hasArgs := strings.Cut(input, " ")
	if !hasArgs {
		candidates = c.registry.AllCompletions()
	} else if cmd, ok := c.registry.Get(strings.ToLower(name)); ok {
		candidates = cmd.Completions(input)
	}

	var out [][]rune
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, word) {
			out = append(out, []rune(candidate[len(word):]+" "))
		}
	}
	return out, len([]rune(word))
}
