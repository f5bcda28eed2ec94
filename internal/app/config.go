package app

import (
	"log/slog"
	"net/http"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	ServerURL  string       // routing server base URL, e.g. https://chat.example.org
	DataDir    string       // state directory, e.g. $HOME/.sotto
	Passphrase string       // seals key material on disk
	HTTP       *http.Client // optional; defaults to the transport's client
	Logger     *slog.Logger // optional; defaults to discard
}
