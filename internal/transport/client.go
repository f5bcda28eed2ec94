package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"sotto/internal/domain"
)

// Config holds configuration for creating a Client.
type Config struct {
	// ServerURL is the base URL of the routing server
	// (e.g. "https://chat.example.org").
	ServerURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Client is an unauthenticated routing-server client. It holds the base
// URL and HTTP transport, shared across Sessions derived from it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new unauthenticated client.
func NewClient(config Config) (*Client, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("transport: ServerURL is required")
	}
	if _, err := url.Parse(config.ServerURL); err != nil {
		return nil, fmt.Errorf("transport: invalid ServerURL %q: %w", config.ServerURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.ServerURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections drops idle HTTP connections from the transport's
// pool. Call after a network disruption so the next request opens a
// fresh TCP connection instead of reusing a poisoned one.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID      domain.UserID   `json:"user_id"`
	AccessToken string          `json:"access_token"`
	DeviceID    domain.DeviceID `json:"device_id"`
}

// Login authenticates with username and password, returning an
// authenticated Session. Bad credentials surface as a *ServerError with
// code FORBIDDEN.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/client/v1/login", "", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: login failed: %w", err)
	}

	var response loginResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("transport: failed to parse login response: %w", err)
	}

	c.logger.Info("logged in to routing server",
		"user_id", response.UserID,
		"device_id", response.DeviceID,
	)
	return &Session{
		client:      c,
		accessToken: response.AccessToken,
		userID:      response.UserID,
		deviceID:    response.DeviceID,
	}, nil
}

// Resume builds a Session from a stored credential without
// re-authenticating. The token is not validated here; the first
// authenticated call (typically WhoAmI) reports UNKNOWN_TOKEN if the
// server has expired it.
func (c *Client) Resume(cred domain.Credential) *Session {
	return &Session{
		client:      c,
		accessToken: cred.AccessToken,
		userID:      cred.UserID,
		deviceID:    cred.DeviceID,
	}
}

// doRequest performs an HTTP request and returns the response body.
// Non-2xx responses are decoded into *ServerError.
func (c *Client) doRequest(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		serverErr := &ServerError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, serverErr); err != nil || serverErr.Code == "" {
			serverErr.Code = ErrCodeUnknown
			serverErr.Message = strings.TrimSpace(string(body))
		}
		return nil, serverErr
	}
	return body, nil
}

// doUpload performs a raw binary POST (media upload).
func (c *Client) doUpload(ctx context.Context, path, token string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		serverErr := &ServerError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, serverErr); err != nil || serverErr.Code == "" {
			serverErr.Code = ErrCodeUnknown
			serverErr.Message = strings.TrimSpace(string(body))
		}
		return nil, serverErr
	}
	return body, nil
}
