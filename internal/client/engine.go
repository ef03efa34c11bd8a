package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/nodegraph/internal/graph"
)

// HTTPEngine implements EngineClient against the engine's HTTP API.
type HTTPEngine struct {
	t transport
}

// NewHTTPEngine creates an engine client for baseURL
// (e.g. "http://127.0.0.1:8188").
func NewHTTPEngine(baseURL string, hc *http.Client) *HTTPEngine {
	return &HTTPEngine{t: newTransport(baseURL, "", hc)}
}

// ObjectInfo fetches GET /object_info.
func (c *HTTPEngine) ObjectInfo(ctx context.Context) (json.RawMessage, error) {
	body, err := c.t.doRaw(ctx, http.MethodGet, "/object_info", nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("decoding object_info: invalid JSON")
	}
	return json.RawMessage(body), nil
}

type promptRequest struct {
	Prompt   graph.Payload `json:"prompt"`
	ClientID string        `json:"client_id,omitempty"`
}

// QueuePrompt posts the workflow to POST /prompt. A success body that is
// not JSON, or carries no prompt_id, yields an empty id.
func (c *HTTPEngine) QueuePrompt(ctx context.Context, prompt graph.Payload, clientID string) (string, error) {
	data, err := json.Marshal(promptRequest{Prompt: prompt, ClientID: clientID})
	if err != nil {
		return "", fmt.Errorf("marshaling prompt: %w", err)
	}
	body, err := c.t.doRaw(ctx, http.MethodPost, "/prompt", data)
	if err != nil {
		return "", err
	}
	var resp struct {
		PromptID json.RawMessage `json:"prompt_id"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return "", nil
	}
	return promptIDText(resp.PromptID), nil
}

func promptIDText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
