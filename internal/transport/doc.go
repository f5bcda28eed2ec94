// Package transport is the HTTP client for the routing server.
//
// Two types: Client is unauthenticated and handles login, returning
// authenticated Session values; Session wraps a Client with an access
// token for everything else (sync long-polling, room management, event
// sends, media upload, device-key distribution, to-device delivery).
//
// All API errors from the server are returned as *ServerError with the
// server's error code and the HTTP status; IsServerError tests for a
// specific code. Request URLs are built by string concatenation with
// individually path-escaped segments rather than url.URL, which can
// re-encode already-encoded path segments.
//
// Event sends carry a client-generated transaction ID so the server can
// deduplicate transport-level retries; the engine itself never retries a
// send.
package transport
