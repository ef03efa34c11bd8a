package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/nodegraph/internal/events"
	"github.com/alfredjeanlab/nodegraph/internal/export"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/ordered"
)

// Engine queues workflows for execution. QueuePrompt returns the engine's
// prompt id, which may be empty.
type Engine interface {
	QueuePrompt(ctx context.Context, prompt graph.Payload, clientID string) (string, error)
}

// ErrSubmissionRejected is matched by every failed submission.
var ErrSubmissionRejected = errors.New("submission rejected")

// SubmissionError describes a failed submission. Detail is the engine's
// response body when it answered with an error status, or the transport
// error otherwise.
type SubmissionError struct {
	Detail string
	Err    error
}

func (e *SubmissionError) Error() string {
	return ErrSubmissionRejected.Error() + ": " + e.Detail
}

// Unwrap matches ErrSubmissionRejected and the underlying cause.
func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmissionRejected}
	}
	return []error{ErrSubmissionRejected, e.Err}
}

// detailer is implemented by transport errors that carry a response body.
type detailer interface {
	Detail() string
}

func submissionError(err error) *SubmissionError {
	var d detailer
	if errors.As(err, &d) {
		return &SubmissionError{Detail: d.Detail(), Err: err}
	}
	return &SubmissionError{Detail: err.Error(), Err: err}
}

// Text returns the textual view: the serialized workflow, indented.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Payload returns the serialized workflow.
func (s *Session) Payload() graph.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Serialize()
}

// LoadText replaces the graph with the workflow in text. Malformed text
// fails with graph.ErrMalformedInput and leaves the graph untouched.
// Loading clears the layout and the selection.
func (s *Session) LoadText(text string) error {
	return s.run("load", func() error {
		if strings.TrimSpace(text) == "" {
			return s.fail(fmt.Errorf("%w: empty text", graph.ErrMalformedInput), msgEmptyText)
		}
		p, err := graph.ParsePayload(text)
		if errors.Is(err, ordered.ErrNotObject) {
			return s.fail(err, msgInvalidFormat)
		}
		if err != nil {
			detail := strings.TrimPrefix(err.Error(), graph.ErrMalformedInput.Error()+": ")
			return s.fail(err, "JSON could not be parsed: "+detail)
		}

		s.store.LoadFromPayload(p)
		s.view.Reset()
		s.emit(events.TopicWorkflowLoaded, events.WorkflowLoaded{Nodes: s.store.Len()})
		s.emit(events.TopicPipelineLayout, events.LayoutChanged{Reset: true})
		s.emit(events.TopicPipelineSelection, events.SelectionChanged{})
		s.changed()
		s.setStatus(SeveritySuccess, msgLoaded)
		return nil
	})
}

// Submit sends the workflow to the engine and returns the prompt id, which
// is empty when the engine did not report one. An empty graph is rejected
// without contacting the engine. The session lock is not held while the
// request is in flight.
func (s *Session) Submit(ctx context.Context) (string, error) {
	var (
		payload graph.Payload
		err     error
	)
	s.update(func() {
		payload = s.store.Serialize()
		switch {
		case payload.Len() == 0:
			err = s.fail(&SubmissionError{Detail: "workflow is empty"}, msgEmptyWorkflow)
		case s.engine == nil:
			err = s.fail(&SubmissionError{Detail: "no engine configured"}, "Execution failed: no engine configured")
		default:
			s.setStatus(SeverityInfo, msgSending)
		}
	})
	if err != nil {
		s.observer.Submitted(err)
		s.observer.CommandDone("submit", err)
		return "", err
	}

	promptID, qerr := s.engine.QueuePrompt(ctx, payload, s.clientID)
	s.update(func() {
		if qerr != nil {
			se := submissionError(qerr)
			s.logger.Warn("submission failed", "err", qerr)
			err = s.fail(se, "Execution failed: "+se.Detail)
			return
		}
		s.emit(events.TopicWorkflowSubmitted, events.WorkflowSubmitted{
			PromptID: promptID, ClientID: s.clientID, Nodes: payload.Len(),
		})
		if promptID != "" {
			s.setStatus(SeveritySuccess, fmt.Sprintf("Workflow started (Prompt ID: %s).", promptID))
		} else {
			s.setStatus(SeveritySuccess, msgQueued)
		}
	})
	s.observer.Submitted(err)
	s.observer.CommandDone("submit", err)
	return promptID, err
}

// Download returns the workflow file contents for a user download.
func (s *Session) Download() []byte {
	var data []byte
	_ = s.run("download", func() error {
		data = []byte(s.text)
		s.setStatus(SeveritySuccess, msgExported)
		return nil
	})
	return data
}

// Export writes the workflow to every destination. Destinations are
// written outside the session lock; failures are joined.
func (s *Session) Export(ctx context.Context, dests []export.Destination) error {
	data := []byte(s.Text())
	err := export.Export(ctx, data, dests, s.logger)
	names := make([]string, 0, len(dests))
	for _, d := range dests {
		names = append(names, d.Name())
	}
	return s.run("export", func() error {
		if err != nil {
			return s.fail(err, "Export failed: "+err.Error())
		}
		s.emit(events.TopicWorkflowExported, events.WorkflowExported{Destinations: names, Bytes: len(data)})
		s.setStatus(SeveritySuccess, msgExported)
		return nil
	})
}
