package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	strutil "deltactl/pkg/strings"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	// OutputFormatTable renders rounded go-pretty tables.
	OutputFormatTable OutputFormat = "table"
	// OutputFormatJSON renders indented JSON.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML renders YAML.
	OutputFormatYAML OutputFormat = "yaml"
)

// ValidOutputFormats contains all valid output format values.
var ValidOutputFormats = []OutputFormat{
	OutputFormatTable,
	OutputFormatJSON,
	OutputFormatYAML,
}

// ValidateOutputFormat validates that the given format string is a supported output format.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (valid: table, json, yaml)", format)
	}
}

// maxCellWidth bounds table cells before they are truncated.
const maxCellWidth = 100

// Printer writes results to out in one format.
type Printer struct {
	out    io.Writer
	format OutputFormat
}

// NewPrinter returns a printer. An empty format means table.
func NewPrinter(out io.Writer, format OutputFormat) *Printer {
	if format == "" {
		format = OutputFormatTable
	}
	return &Printer{out: out, format: format}
}

// Format returns the printer's output format.
func (p *Printer) Format() OutputFormat {
	return p.format
}

// SetFormat switches the output format.
func (p *Printer) SetFormat(format OutputFormat) {
	p.format = format
}

// Out returns the underlying writer.
func (p *Printer) Out() io.Writer {
	return p.out
}

// Println writes a line of text regardless of format.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

// Structured prints v as JSON or YAML. It returns false in table mode so the
// caller can render a table instead.
func (p *Printer) Structured(v any) (bool, error) {
	switch p.format {
	case OutputFormatJSON:
		return true, p.writeJSON(v)
	case OutputFormatYAML:
		return true, p.writeYAML(v)
	default:
		return false, nil
	}
}

func (p *Printer) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format as JSON: %w", err)
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

func (p *Printer) writeYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format as YAML: %w", err)
	}
	_, err = p.out.Write(data)
	return err
}

// newTable creates a table with the standard styling and colored headers.
func (p *Printer) newTable(headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	if len(headers) > 0 {
		row := make(table.Row, len(headers))
		for i, h := range headers {
			row[i] = text.FgHiCyan.Sprint(h)
		}
		t.AppendHeader(row)
	}
	return t
}

// empty prints the message used when there is nothing to show.
func (p *Printer) empty(message string) {
	fmt.Fprintf(p.out, "%s\n", text.FgYellow.Sprint(message))
}

// truncate shortens s to maxCellWidth and keeps it on one line.
func truncate(s string) string {
	return strutil.Truncate(s, maxCellWidth)
}
