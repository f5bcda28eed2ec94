package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPResponder asks an external completion endpoint for replies. The
// endpoint receives the conversation turns as JSON and answers with a
// single reply string.
type HTTPResponder struct {
	Endpoint   string
	HTTPClient *http.Client
}

type completionRequest struct {
	Turns []Turn `json:"turns"`
}

type completionResponse struct {
	Reply string `json:"reply"`
}

// Respond posts the turns and returns the endpoint's reply.
func (r *HTTPResponder) Respond(ctx context.Context, turns []Turn) (string, error) {
	payload, err := json.Marshal(completionRequest{Turns: turns})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := r.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion endpoint returned %d", resp.StatusCode)
	}

	var completion completionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("malformed completion response: %w", err)
	}
	if completion.Reply == "" {
		return "", fmt.Errorf("completion endpoint returned empty reply")
	}
	return completion.Reply, nil
}

var _ Responder = (*HTTPResponder)(nil)

// EchoResponder replies with the last user message. Useful for local
// smoke testing without a model endpoint.
type EchoResponder struct{}

// Respond returns the most recent user turn's content.
func (EchoResponder) Respond(_ context.Context, turns []Turn) (string, error) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			return "You said: " + turns[i].Content, nil
		}
	}
	return "Hello! Say something and I'll respond.", nil
}

var _ Responder = EchoResponder{}
