// Package app wires application dependencies for the CLI.
//
// It builds the engine client from Config and remembers which account
// the CLI is operating as between invocations.
package app
