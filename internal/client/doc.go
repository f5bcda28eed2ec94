// Package client is the public face of the session engine. A Client
// authenticates against a routing server and produces a Session: one
// sync loop, one crypto manager, one reconciled timeline, and a typed
// event bus for consumers.
package client
