package editor

import (
	"errors"
	"fmt"
)

// Severity classifies a status message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Status is the single user-facing message line of the session.
type Status struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ViewMode selects which view of the graph is active.
type ViewMode string

const (
	ViewSimple   ViewMode = "simple"
	ViewPipeline ViewMode = "pipeline"
)

// ErrInvalidView is returned for an unknown view mode name.
var ErrInvalidView = errors.New("invalid view mode")

// ParseViewMode validates a view mode name.
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(s); m {
	case ViewSimple, ViewPipeline:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (want simple or pipeline)", ErrInvalidView, s)
}

// Status messages.
const (
	msgReady              = "Ready."
	msgCatalogUnavailable = "Node definitions could not be loaded. Check the server console."
	msgSelectType         = "Please select a node type first."
	msgLayoutReset        = "Pipeline layout reset."
	msgEmptyWorkflow      = "The workflow is empty."
	msgSending            = "Sending workflow..."
	msgQueued             = "Workflow queued."
	msgEmptyText          = "JSON field is empty."
	msgInvalidFormat      = "Invalid workflow format."
	msgLoaded             = "Workflow loaded from JSON."
	msgExported           = "Workflow exported."
)
