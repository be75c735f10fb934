package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Progress shows a spinner while a long operation runs. The spinner only
// animates on a terminal. A quiet Progress prints nothing.
type Progress struct {
	w io.Writer
	s *spinner.Spinner
}

// StartProgress starts a spinner on w with the given message.
func StartProgress(w io.Writer, message string, quiet bool) *Progress {
	if quiet {
		return &Progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	s.Start()
	return &Progress{w: w, s: s}
}

// Fail stops the spinner and prints message in its place.
func (p *Progress) Fail(message string) {
	if p.s == nil {
		return
	}
	p.s.Stop()
	fmt.Fprintln(p.w, text.FgRed.Sprint("❌ "+message))
}

// Stop removes the spinner.
func (p *Progress) Stop() {
	if p.s == nil {
		return
	}
	p.s.Stop()
}
