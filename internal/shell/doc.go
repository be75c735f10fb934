// Package shell implements deltactl's interactive shell.
//
// The REPL reads commands with readline (history, Ctrl+R search and tab
// completion), dispatches them through a commands.Registry and prints the
// results with a cli.Printer. Its prompt reflects the session:
//
//	deltactl »                      not signed in
//	deltactl ada »                  signed in as ada
//	deltactl ada [ADMIN] »          signed in with an admin role
//	deltactl [SIGN-IN PENDING] »    a redirect sign-in has not completed
//	deltactl ada [SESSION EXPIRED] » the token could not be renewed silently
//
// Sign-ins that complete in the background are announced as soon as the
// coordinator reports them through OnView.
//
// RunScript executes the same commands without a prompt, for `deltactl exec`.
package shell
