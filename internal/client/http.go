package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx response. Message is the "error" member of a JSON
// body when there is one, otherwise the body text.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Detail returns the body verbatim, or a generic notice when it is empty.
func (e *APIError) Detail() string {
	if b := strings.TrimSpace(e.Body); b != "" {
		return b
	}
	return fmt.Sprintf("server reported %d", e.StatusCode)
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Message: string(body), Body: string(body)}
	var shaped struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &shaped) == nil && shaped.Error != "" {
		e.Message = shaped.Error
	}
	return e
}

// transport is the HTTP plumbing shared by HTTPEditor and HTTPEngine.
type transport struct {
	base  string
	token string
	hc    *http.Client
}

func newTransport(baseURL, token string, hc *http.Client) transport {
	if hc == nil {
		hc = &http.Client{}
	}
	return transport{base: strings.TrimRight(baseURL, "/"), token: token, hc: hc}
}

// doJSON sends in (when non-nil) as JSON and decodes the reply into out
// (when non-nil and the reply has a body).
func (t *transport) doJSON(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
	}
	reply, err := t.doRaw(ctx, method, path, payload)
	if err != nil || out == nil || len(reply) == 0 {
		return err
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// doRaw sends payload verbatim and returns the reply undecoded. A 204
// yields a nil reply; any status outside 2xx is an *APIError.
func (t *transport) doRaw(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	t.authorize(req)

	resp, err := t.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, reply)
	}
	return reply, nil
}

func (t *transport) authorize(req *http.Request) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
}
