package shell

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"

	"deltactl/internal/cli"
)

// Logger writes user-facing status messages. It is not the application log,
// which goes through pkg/logging.
type Logger struct {
	writer io.Writer
}

// NewLogger creates a logger writing to w, or stdout when w is nil.
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{writer: w}
}

// SetWriter sets a custom writer for the logger
func (l *Logger) SetWriter(w io.Writer) {
	l.writer = w
}

// Output writes user-facing output without a newline
func (l *Logger) Output(format string, args ...interface{}) {
	fmt.Fprintf(l.writer, format, args...)
}

// OutputLine writes user-facing output with a newline
func (l *Logger) OutputLine(format string, args ...interface{}) {
	fmt.Fprintf(l.writer, format+"\n", args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	fmt.Fprintln(l.writer, text.FgHiBlue.Sprint(fmt.Sprintf(format, args...)))
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	fmt.Fprintln(l.writer, cli.FormatWarning(fmt.Sprintf(format, args...)))
}

// Success logs a success message
func (l *Logger) Success(format string, args ...interface{}) {
	fmt.Fprintln(l.writer, cli.FormatSuccess(fmt.Sprintf(format, args...)))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintln(l.writer, text.FgRed.Sprint(fmt.Sprintf(format, args...)))
}

// Failure prints err with its hint.
func (l *Logger) Failure(err error) {
	fmt.Fprintln(l.writer, cli.FormatError(err))
}
