package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// ErrUnknownCommand is returned by Dispatch for an unknown op.
var ErrUnknownCommand = errors.New("unknown command")

// Command ops accepted by Dispatch.
const (
	OpInsert         = "insert"
	OpRemove         = "remove"
	OpSet            = "set"
	OpConnect        = "connect"
	OpDisconnect     = "disconnect"
	OpClickOutput    = "click_output"
	OpClickInput     = "click_input"
	OpClearSelection = "clear_selection"
	OpPointerDown    = "pointer_down"
	OpPointerMove    = "pointer_move"
	OpPointerUp      = "pointer_up"
	OpPointerCancel  = "pointer_cancel"
	OpScroll         = "scroll"
	OpResize         = "resize"
	OpReportPorts    = "report_ports"
	OpResetLayout    = "reset_layout"
	OpRender         = "render"
	OpSetView        = "set_view"
	OpToggleView     = "toggle_view"
	OpLoad           = "load"
	OpSubmit         = "submit"
)

// Command is one user gesture, as sent by a rendering surface. Only the
// members the op needs are read.
type Command struct {
	Op      string              `json:"op"`
	Type    string              `json:"type,omitempty"`
	Node    string              `json:"node,omitempty"`
	Field   string              `json:"field,omitempty"`
	Value   string              `json:"value,omitempty"`
	Source  string              `json:"source,omitempty"`
	Index   int                 `json:"index,omitempty"`
	Pointer int                 `json:"pointer,omitempty"`
	X       float64             `json:"x,omitempty"`
	Y       float64             `json:"y,omitempty"`
	Width   float64             `json:"width,omitempty"`
	Height  float64             `json:"height,omitempty"`
	View    string              `json:"view,omitempty"`
	Text    string              `json:"text,omitempty"`
	Ports   []pipeline.PortRect `json:"ports,omitempty"`
}

// Result is the outcome of a dispatched command.
type Result struct {
	Op     string `json:"op"`
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// Dispatch maps one command to one session call.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	data, err := s.dispatch(ctx, cmd)
	return Result{Op: cmd.Op, Status: s.Status(), Data: data}, err
}

func (s *Session) dispatch(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Op {
	case OpInsert:
		id, err := s.Insert(cmd.Type)
		return map[string]string{"id": id}, err
	case OpRemove:
		return map[string]bool{"removed": s.Remove(cmd.Node)}, nil
	case OpSet:
		v, err := s.SetField(cmd.Node, cmd.Field, cmd.Value)
		return map[string]any{"value": v}, err
	case OpConnect:
		return nil, s.Connect(cmd.Node, cmd.Field, cmd.Source, cmd.Index)
	case OpDisconnect:
		removed, err := s.Disconnect(cmd.Node, cmd.Field)
		return map[string]bool{"removed": removed}, err
	case OpClickOutput:
		selected, err := s.ClickOutput(cmd.Node, cmd.Index)
		return map[string]bool{"selected": selected}, err
	case OpClickInput:
		return s.ClickInput(cmd.Node, cmd.Field)
	case OpClearSelection:
		s.ClearSelection()
		return nil, nil
	case OpPointerDown:
		return nil, s.PointerDown(cmd.Node, cmd.Pointer, cmd.X, cmd.Y)
	case OpPointerMove:
		node, pos, ok := s.PointerMove(cmd.Pointer, cmd.X, cmd.Y)
		if !ok {
			return nil, nil
		}
		return map[string]any{"node": node, "position": pos}, nil
	case OpPointerUp:
		return map[string]bool{"ended": s.PointerUp(cmd.Pointer)}, nil
	case OpPointerCancel:
		return map[string]bool{"ended": s.PointerCancel(cmd.Pointer)}, nil
	case OpScroll:
		s.Scroll(cmd.X, cmd.Y)
		return nil, nil
	case OpResize:
		s.Resize(cmd.Width, cmd.Height)
		return nil, nil
	case OpReportPorts:
		s.ReportPorts(cmd.Ports)
		return nil, nil
	case OpResetLayout:
		return s.ResetLayout(), nil
	case OpRender:
		return s.Scene(), nil
	case OpSetView:
		return nil, s.SetView(ViewMode(cmd.View))
	case OpToggleView:
		return map[string]ViewMode{"view": s.ToggleView()}, nil
	case OpLoad:
		return nil, s.LoadText(cmd.Text)
	case OpSubmit:
		id, err := s.Submit(ctx)
		return map[string]string{"prompt_id": id}, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Op)
}
