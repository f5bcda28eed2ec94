// Package commands defines the sotto CLI and wires dependencies for subcommands.
//
// Commands
//
//   - login        Authenticate against the routing server
//   - logout       Revoke the session and wipe the credential
//   - whoami       Print the active account and device fingerprint
//   - rooms        List joined rooms with unread counts
//   - send         Send a text message to a room or user
//   - send-file    Upload and send a file
//   - join         Accept an invite or join a room by ID
//   - invite       Invite a user into a room
//   - watch        Stream incoming messages to the terminal
//   - verify       Compare and confirm a device fingerprint
//   - agent        Run a conversational responder on this account
//
// # Implementation
//
// The root command reads configuration (flags, environment, config
// file) and builds the engine client before any subcommand runs, so
// handlers share one dependency graph.
package commands
