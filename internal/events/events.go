// Package events publishes editor session changes to an event bus.
package events

import (
	"context"

	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// Event topic constants
const (
	TopicNodeInserted      = "nodegraph.node.inserted"
	TopicNodeRemoved       = "nodegraph.node.removed"
	TopicFieldUpdated      = "nodegraph.field.updated"
	TopicConnectionAdded   = "nodegraph.connection.added"
	TopicConnectionRemoved = "nodegraph.connection.removed"

	// Workflow events
	TopicWorkflowLoaded    = "nodegraph.workflow.loaded"
	TopicWorkflowChanged   = "nodegraph.workflow.changed"
	TopicWorkflowSubmitted = "nodegraph.workflow.submitted"
	TopicWorkflowExported  = "nodegraph.workflow.exported"

	// Pipeline view events
	TopicPipelineLayout      = "nodegraph.pipeline.layout"
	TopicPipelineSelection   = "nodegraph.pipeline.selection"
	TopicPipelineConnections = "nodegraph.pipeline.connections"

	TopicViewChanged = "nodegraph.view.changed"
	TopicStatus      = "nodegraph.status"
)

// AllTopics matches every topic above.
const AllTopics = "nodegraph.>"

// Event types

type NodeInserted struct {
	NodeID    string `json:"node_id"`
	ClassType string `json:"class_type"`
}

type NodeRemoved struct {
	NodeID  string           `json:"node_id"`
	Cleared []graph.FieldRef `json:"cleared,omitempty"` // inputs that lost their connection
}

// FieldUpdated carries the stored value; Value is null when the field was
// cleared.
type FieldUpdated struct {
	NodeID string      `json:"node_id"`
	Field  string      `json:"field"`
	Value  graph.Value `json:"value"`
}

type ConnectionAdded struct {
	From pipeline.OutputRef `json:"from"`
	To   graph.FieldRef     `json:"to"`
}

type ConnectionRemoved struct {
	From pipeline.OutputRef `json:"from"`
	To   graph.FieldRef     `json:"to"`
}

type WorkflowLoaded struct {
	Nodes int `json:"nodes"`
}

// WorkflowChanged carries the regenerated textual view.
type WorkflowChanged struct {
	Text  string `json:"text"`
	Nodes int    `json:"nodes"`
}

type WorkflowSubmitted struct {
	PromptID string `json:"prompt_id,omitempty"`
	ClientID string `json:"client_id"`
	Nodes    int    `json:"nodes"`
}

type WorkflowExported struct {
	Destinations []string `json:"destinations"`
	Bytes        int      `json:"bytes"`
}

// LayoutChanged reports a moved card, or a full reset when Reset is set.
type LayoutChanged struct {
	NodeID   string          `json:"node_id,omitempty"`
	Position *pipeline.Point `json:"position,omitempty"`
	Reset    bool            `json:"reset,omitempty"`
}

type SelectionChanged struct {
	Selection *pipeline.OutputRef `json:"selection"`
}

type ConnectionsRecomputed struct {
	Paths []pipeline.Path `json:"paths"`
}

type ViewChanged struct {
	View string `json:"view"`
}

type StatusChanged struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
