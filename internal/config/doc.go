// Package config holds deltactl's runtime configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// config file ($HOME/.deltactl.yaml or ./.deltactl.yaml, or the file named by
// --config), DELTACTL_* environment variables and command-line flags. The
// cmd package binds flags to viper; Load turns the merged viper state into a
// Config and Validate rejects anything the identity session or the data
// client could not work with.
package config
