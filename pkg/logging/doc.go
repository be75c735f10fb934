// Package logging provides the subsystem-tagged structured logger used across
// deltactl.
//
// It wraps log/slog with a small set of package-level functions so that
// callers never hold a logger themselves:
//
//	logging.InitForCLI(logging.LevelInfo, logging.FormatText, os.Stderr)
//	logging.Info("Identity", "signed in as %s", account.Username)
//	logging.Error("DataClient", err, "fetch of %s failed", endpoint)
//
// Every entry carries a "subsystem" attribute and, for Error, an "error"
// attribute. Credentials must never be passed as message arguments; use
// Redact when a token-shaped value has to be referenced in a log line.
package logging
