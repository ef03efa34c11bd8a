// Package client provides HTTP/JSON clients for the execution engine and for
// the nodegraph editor server.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/editor"
	"github.com/alfredjeanlab/nodegraph/internal/fields"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// EngineClient is the execution engine: it publishes node definitions and
// queues workflows. It is implemented by HTTPEngine.
type EngineClient interface {
	// ObjectInfo returns the raw node definition mapping.
	ObjectInfo(ctx context.Context) (json.RawMessage, error)
	// QueuePrompt queues a workflow and returns the engine's prompt id,
	// which may be empty.
	QueuePrompt(ctx context.Context, prompt graph.Payload, clientID string) (string, error)
}

// EditorClient is the interface the ng CLI uses to drive a running editor
// server. It is implemented by HTTPEditor.
type EditorClient interface {
	Health(ctx context.Context) (string, error)
	Status(ctx context.Context) (*editor.Summary, error)

	// Catalog
	Catalog(ctx context.Context, query string) ([]catalog.Option, error)
	Definition(ctx context.Context, typeName string) (*catalog.Definition, error)

	// Workflow
	Workflow(ctx context.Context) (string, error)
	LoadWorkflow(ctx context.Context, text string) (*editor.Summary, error)
	Download(ctx context.Context) ([]byte, error)
	Export(ctx context.Context) (*StatusResponse, error)
	Submit(ctx context.Context) (*SubmitResponse, error)

	// Graph
	Insert(ctx context.Context, typeName string) (*InsertResponse, error)
	Remove(ctx context.Context, id string) (*StatusResponse, error)
	Form(ctx context.Context, id string) (*fields.Form, error)
	SetField(ctx context.Context, id, field, value string) (*FieldResponse, error)

	// Pipeline
	Scene(ctx context.Context) (*pipeline.Scene, error)
	ClickOutput(ctx context.Context, id string, index int) (*SelectResponse, error)
	ClickInput(ctx context.Context, id, field string) (*ClickResponse, error)
	ResetLayout(ctx context.Context) (*pipeline.Scene, error)
	SetView(ctx context.Context, view editor.ViewMode) (*ViewResponse, error)
	ToggleView(ctx context.Context) (*ViewResponse, error)

	// Command dispatches any session command.
	Command(ctx context.Context, cmd editor.Command) (*editor.Result, error)
}

// StatusResponse carries the session status after a command.
type StatusResponse struct {
	Status editor.Status `json:"status"`
}

// InsertResponse is the response from Insert.
type InsertResponse struct {
	ID     string        `json:"id"`
	Status editor.Status `json:"status"`
}

// FieldResponse is the response from SetField. Value is null when the field
// was cleared.
type FieldResponse struct {
	Value  json.RawMessage `json:"value"`
	Status editor.Status   `json:"status"`
}

// SelectResponse is the response from ClickOutput.
type SelectResponse struct {
	Selected bool          `json:"selected"`
	Status   editor.Status `json:"status"`
}

// ClickResponse is the response from ClickInput.
type ClickResponse struct {
	Result pipeline.ClickResult `json:"result"`
	Status editor.Status        `json:"status"`
}

// ViewResponse is the response from SetView and ToggleView.
type ViewResponse struct {
	View   editor.ViewMode `json:"view"`
	Status editor.Status   `json:"status"`
}

// SubmitResponse is the response from Submit.
type SubmitResponse struct {
	PromptID string        `json:"prompt_id,omitempty"`
	Status   editor.Status `json:"status"`
}
