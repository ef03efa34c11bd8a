package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/fields"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// HTTPEditor implements EditorClient using the editor server's HTTP/JSON API.
type HTTPEditor struct {
	t transport
}

// NewHTTPEditor creates a client targeting the given base URL
// (e.g. "http://localhost:8090"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPEditor(baseURL, token string) *HTTPEditor {
	return &HTTPEditor{t: newTransport(baseURL, token, nil)}
}

// --- System ---

func (c *HTTPEditor) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.t.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPEditor) Status(ctx context.Context) (*editor.Summary, error) {
	var s editor.Summary
	if err := c.t.doJSON(ctx, http.MethodGet, "/v1/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Catalog ---

func (c *HTTPEditor) Catalog(ctx context.Context, query string) ([]catalog.Option, error) {
	path := "/v1/catalog"
	if query != "" {
		path += "?" + url.Values{"q": {query}}.Encode()
	}
	var resp struct {
		Options []catalog.Option `json:"options"`
	}
	if err := c.t.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Options, nil
}

func (c *HTTPEditor) Definition(ctx context.Context, typeName string) (*catalog.Definition, error) {
	var def catalog.Definition
	if err := c.t.doJSON(ctx, http.MethodGet, "/v1/catalog/"+url.PathEscape(typeName), nil, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// --- Workflow ---

func (c *HTTPEditor) Workflow(ctx context.Context) (string, error) {
	body, err := c.t.doRaw(ctx, http.MethodGet, "/v1/workflow", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *HTTPEditor) LoadWorkflow(ctx context.Context, text string) (*editor.Summary, error) {
	var s editor.Summary
	if err := c.t.doJSON(ctx, http.MethodPut, "/v1/workflow", map[string]string{"text": text}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPEditor) Download(ctx context.Context) ([]byte, error) {
	return c.t.doRaw(ctx, http.MethodGet, "/v1/export", nil)
}

func (c *HTTPEditor) Export(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.t.doJSON(ctx, http.MethodPost, "/v1/export", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPEditor) Submit(ctx context.Context) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.t.doJSON(ctx, http.MethodPost, "/v1/submit", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Graph ---

func (c *HTTPEditor) Insert(ctx context.Context, typeName string) (*InsertResponse, error) {
	var resp InsertResponse
	if err := c.t.doJSON(ctx, http.MethodPost, "/v1/nodes", map[string]string{"type": typeName}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPEditor) Remove(ctx context.Context, id string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.t.doJSON(ctx, http.MethodDelete, "/v1/nodes/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPEditor) Form(ctx context.Context, id string) (*fields.Form, error) {
	var form fields.Form
	if err := c.t.doJSON(ctx, http.MethodGet, "/v1/nodes/"+url.PathEscape(id)+"/form", nil, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

func (c *HTTPEditor) SetField(ctx context.Context, id, field, value string) (*FieldResponse, error) {
	path := "/v1/nodes/" + url.PathEscape(id) + "/inputs/" + url.PathEscape(field)
	var resp FieldResponse
	if err := c.t.doJSON(ctx, http.MethodPut, path, map[string]string{"value": value}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Pipeline ---

func (c *HTTPEditor) Scene(ctx context.Context) (*pipeline.Scene, error) {
	var scene pipeline.Scene
	if err := c.t.doJSON(ctx, http.MethodGet, "/v1/pipeline", nil, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

func (c *HTTPEditor) ClickOutput(ctx context.Context, id string, index int) (*SelectResponse, error) {
	path := "/v1/pipeline/outputs/" + url.PathEscape(id) + "/" + strconv.Itoa(index)
	var resp SelectResponse
	if err := c.t.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPEditor) ClickInput(ctx context.Context, id, field string) (*ClickResponse, error) {
	path := "/v1/pipeline/inputs/" + url.PathEscape(id) + "/" + url.PathEscape(field)
	var resp ClickResponse
	if err := c.t.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPEditor) ResetLayout(ctx context.Context) (*pipeline.Scene, error) {
	var scene pipeline.Scene
	if err := c.t.doJSON(ctx, http.MethodPost, "/v1/pipeline/layout/reset", nil, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

func (c *HTTPEditor) SetView(ctx context.Context, view editor.ViewMode) (*ViewResponse, error) {
	var resp ViewResponse
	if err := c.t.doJSON(ctx, http.MethodPut, "/v1/view", map[string]string{"view": string(view)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPEditor) ToggleView(ctx context.Context) (*ViewResponse, error) {
	var resp ViewResponse
	if err := c.t.doJSON(ctx, http.MethodPut, "/v1/view", map[string]bool{"toggle": true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Commands ---

func (c *HTTPEditor) Command(ctx context.Context, cmd editor.Command) (*editor.Result, error) {
	var res editor.Result
	if err := c.t.doJSON(ctx, http.MethodPost, "/v1/commands", cmd, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
