// Package cli renders deltactl's results for the terminal.
//
// Every renderer supports three output formats:
//   - table: go-pretty tables with colored headers, for people
//   - json: indented JSON, for scripts
//   - yaml: YAML, for people who prefer it over JSON
//
// Payloads from the data endpoints are printed as the server sent them in
// json mode; table mode lists the top-level keys of a JSON object.
//
// The helpers in messages.go format one-line success, warning and error
// messages, adding a hint for errors the user can act on.
package cli
