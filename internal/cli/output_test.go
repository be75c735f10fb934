package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range ValidOutputFormats {
		assert.NoError(t, ValidateOutputFormat(string(f)))
	}
	err := ValidateOutputFormat("wide")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid: table, json, yaml")
}

func TestNewPrinter_DefaultsToTable(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, "")
	assert.Equal(t, OutputFormatTable, p.Format())

	p.SetFormat(OutputFormatJSON)
	assert.Equal(t, OutputFormatJSON, p.Format())
}

func TestPrinter_Structured(t *testing.T) {
	v := map[string]any{"name": "ada", "roles": []string{"admin"}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		ok, err := NewPrinter(&buf, OutputFormatJSON).Structured(v)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"name":"ada","roles":["admin"]}`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		ok, err := NewPrinter(&buf, OutputFormatYAML).Structured(v)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "name: ada\nroles:\n    - admin\n", buf.String())
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		ok, err := NewPrinter(&buf, OutputFormatTable).Structured(v)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, buf.String())
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b c", truncate("a\nb\tc"))

	long := strings.Repeat("x", 150)
	got := truncate(long)
	assert.Len(t, got, maxCellWidth)
	assert.True(t, strings.HasSuffix(got, "..."))
}
