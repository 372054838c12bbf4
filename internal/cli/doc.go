// Package cli defines the Cobra command tree for the appupdate CLI. Each file
// in this package registers one top-level command (check, watch, status, etc.)
// with the root command. Commands build an update coordinator from the user
// configuration and only handle flag parsing, output formatting, and exit status.
package cli
