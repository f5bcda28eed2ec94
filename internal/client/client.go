package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"sotto/internal/domain"
	"sotto/internal/services/roomkeys"
	"sotto/internal/store"
	"sotto/internal/transport"
)

// Config holds everything a Client needs.
type Config struct {
	// ServerURL is the routing server base URL, e.g. "https://chat.example.org".
	ServerURL string
	// DataDir is the root directory for all persisted state.
	DataDir string
	// Passphrase seals key material on disk.
	Passphrase string

	// HTTPClient overrides the transport's HTTP client. Optional.
	HTTPClient *http.Client
	// Logger receives structured engine logs. Optional.
	Logger *slog.Logger
	// Rotation overrides the outbound session rotation policy. Optional.
	Rotation roomkeys.RotationPolicy
}

// Client builds sessions against one routing server.
type Client struct {
	cfg       Config
	transport *transport.Client
	logger    *slog.Logger
}

// New validates the config and prepares the transport.
func New(cfg Config) (*Client, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("client: DataDir is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tc, err := transport.NewClient(transport.Config{
		ServerURL:  cfg.ServerURL,
		HTTPClient: cfg.HTTPClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{cfg: cfg, transport: tc, logger: logger}, nil
}

// Authenticate logs in with username and password, persists the issued
// credential, and starts a live session.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	tsess, err := c.transport.Login(ctx, username, password)
	if err != nil {
		if transport.IsServerError(err, transport.ErrCodeForbidden) {
			return nil, &AuthError{Reason: "invalid username or password", Err: err}
		}
		return nil, &AuthError{Reason: "login request failed", Err: err}
	}

	creds, err := c.credentialStore(tsess.UserID(), tsess.DeviceID())
	if err != nil {
		return nil, err
	}
	if err := creds.Set(tsess.Credential()); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}

	return c.startSession(ctx, tsess, creds)
}

// Resume restores the session persisted for the given user, validating
// the stored token with the server. A rejected token clears the
// credential and returns ErrSessionExpired.
func (c *Client) Resume(ctx context.Context, user domain.UserID, device domain.DeviceID) (*Session, error) {
	creds, err := c.credentialStore(user, device)
	if err != nil {
		return nil, err
	}
	cred, ok, err := creds.Get()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AuthError{Reason: "no stored credential"}
	}

	tsess := c.transport.Resume(cred)
	if _, err := tsess.WhoAmI(ctx); err != nil {
		if transport.IsServerError(err, transport.ErrCodeUnknownToken) {
			_ = creds.Clear()
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}

	return c.startSession(ctx, tsess, creds)
}

func (c *Client) credentialStore(user domain.UserID, device domain.DeviceID) (*store.CredentialFileStore, error) {
	return store.NewCredentialStore(c.accountDir(user, device))
}

// accountDir isolates each (user, device) pair's state on disk.
func (c *Client) accountDir(user domain.UserID, device domain.DeviceID) string {
	sanitize := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch r {
			case ':', '/', '\\', '@':
				return '_'
			}
			return r
		}, s)
	}
	return filepath.Join(c.cfg.DataDir, sanitize(user.String()), sanitize(device.String()))
}
