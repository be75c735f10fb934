package identity

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/browser"

	"deltactl/pkg/logging"
)

// Navigator takes the user to the provider's authorization page.
type Navigator interface {
	Open(url string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(url string) error

// Open calls f(url).
func (f NavigatorFunc) Open(url string) error {
	return f(url)
}

// BrowserNavigator opens the system browser. When no browser can be started
// the URL is printed to Out so the user can open it by hand.
type BrowserNavigator struct {
	Out io.Writer
}

// NewBrowserNavigator returns a navigator that falls back to writing to out.
func NewBrowserNavigator(out io.Writer) *BrowserNavigator {
	if out == nil {
		out = os.Stderr
	}
	return &BrowserNavigator{Out: out}
}

// Open implements Navigator.
func (n *BrowserNavigator) Open(url string) error {
	// The launcher's own chatter would garble the shell prompt.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	if err := browser.OpenURL(url); err != nil {
		logging.Debug("Identity", "could not open browser: %v", err)
		_, werr := fmt.Fprintf(n.Out, "Open the following URL in your browser to sign in:\n\n  %s\n\n", url)
		return werr
	}
	return nil
}
