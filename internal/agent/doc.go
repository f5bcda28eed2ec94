// Package agent turns a session into a conversational responder: it
// listens for incoming messages, asks a Responder for a reply, and
// sends it back into the room.
package agent
