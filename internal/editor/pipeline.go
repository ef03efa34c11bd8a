package editor

import (
	"github.com/alfredjeanlab/nodegraph/internal/events"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// View returns the active view mode.
func (s *Session) View() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetView switches the active view. Leaving the pipeline view clears the
// selection; entering it renders the pipeline and schedules a recompute.
func (s *Session) SetView(m ViewMode) error {
	return s.run("set_view", func() error {
		if _, err := ParseViewMode(string(m)); err != nil {
			return s.fail(err, "Unknown view: "+string(m))
		}
		s.switchView(m)
		return nil
	})
}

// ToggleView flips between the simple and the pipeline view and returns the
// new mode.
func (s *Session) ToggleView() ViewMode {
	var m ViewMode
	_ = s.run("toggle_view", func() error {
		m = ViewPipeline
		if s.mode == ViewPipeline {
			m = ViewSimple
		}
		s.switchView(m)
		return nil
	})
	return m
}

func (s *Session) switchView(m ViewMode) {
	if m == s.mode {
		return
	}
	prev := s.mode
	s.mode = m
	if prev == ViewPipeline && s.view.ClearSelection() {
		s.emit(events.TopicPipelineSelection, events.SelectionChanged{})
	}
	if m == ViewPipeline {
		s.view.Render()
	}
	s.emit(events.TopicViewChanged, events.ViewChanged{View: string(m)})
}

// Scene renders the pipeline view.
func (s *Session) Scene() pipeline.Scene {
	var scene pipeline.Scene
	s.update(func() { scene = s.view.Render() })
	return scene
}

// Recompute redraws every connection immediately and returns the paths.
func (s *Session) Recompute() []pipeline.Path {
	var paths []pipeline.Path
	s.update(func() {
		s.view.Recompute()
		paths = s.view.Paths()
	})
	return paths
}

// ClickOutput toggles the selection of an output port and reports whether
// it is selected afterwards.
func (s *Session) ClickOutput(node string, index int) (bool, error) {
	var selected bool
	err := s.run("click_output", func() error {
		var err error
		selected, err = s.view.ClickOutput(node, index)
		if err != nil {
			return s.fail(err, "No such output port.")
		}
		s.emitSelection()
		return nil
	})
	return selected, err
}

// ClickInput completes a connection from the selected output, or removes
// the connection in the field when nothing is selected.
func (s *Session) ClickInput(node, field string) (pipeline.ClickResult, error) {
	var res pipeline.ClickResult
	err := s.run("click_input", func() error {
		var err error
		res, err = s.view.ClickInput(node, field)
		if err != nil {
			return s.fail(err, "No such input port.")
		}
		to := graph.FieldRef{Node: node, Field: field}
		switch {
		case res.Connected:
			s.emitSelection()
			s.connected(res.From, to)
		case res.Disconnected:
			s.disconnected(res.From, to)
		}
		return nil
	})
	return res, err
}

// ClearSelection drops the selected output port.
func (s *Session) ClearSelection() {
	_ = s.run("clear_selection", func() error {
		if s.view.ClearSelection() {
			s.emitSelection()
		}
		return nil
	})
}

func (s *Session) emitSelection() {
	ev := events.SelectionChanged{}
	if sel, ok := s.view.Selection(); ok {
		ev.Selection = &sel
	}
	s.emit(events.TopicPipelineSelection, ev)
}

// PointerDown starts dragging a card.
func (s *Session) PointerDown(node string, pointer int, x, y float64) error {
	return s.run("pointer_down", func() error {
		if err := s.view.PointerDown(node, pointer, x, y); err != nil {
			return s.fail(err, "Node "+node+" not found.")
		}
		return nil
	})
}

// PointerMove moves the card dragged by pointer.
func (s *Session) PointerMove(pointer int, x, y float64) (string, pipeline.Point, bool) {
	var (
		node string
		pos  pipeline.Point
		ok   bool
	)
	s.update(func() { node, pos, ok = s.view.PointerMove(pointer, x, y) })
	return node, pos, ok
}

// PointerUp ends a drag.
func (s *Session) PointerUp(pointer int) bool {
	return s.endDrag("pointer_up", pointer, s.view.PointerUp)
}

// PointerCancel ends a drag where the card was last moved.
func (s *Session) PointerCancel(pointer int) bool {
	return s.endDrag("pointer_cancel", pointer, s.view.PointerCancel)
}

func (s *Session) endDrag(op string, pointer int, end func(int) (string, bool)) bool {
	var ok bool
	_ = s.run(op, func() error {
		var node string
		node, ok = end(pointer)
		if !ok {
			return nil
		}
		if pos, found := s.view.Layout().Position(node); found {
			s.emit(events.TopicPipelineLayout, events.LayoutChanged{NodeID: node, Position: &pos})
		}
		return nil
	})
	return ok
}

// Scroll records the canvas scroll offset.
func (s *Session) Scroll(x, y float64) {
	s.update(func() { s.view.Scroll(x, y) })
}

// Resize records the visible canvas size.
func (s *Session) Resize(width, height float64) {
	s.update(func() { s.view.Resize(width, height) })
}

// ReportPorts stores port rectangles measured by a rendering surface.
func (s *Session) ReportPorts(rects []pipeline.PortRect) {
	s.update(func() { s.view.ReportPorts(rects) })
}

// ResetLayout puts every card back on the default grid and clears the
// selection.
func (s *Session) ResetLayout() pipeline.Scene {
	var scene pipeline.Scene
	_ = s.run("reset_layout", func() error {
		scene = s.view.ResetLayout()
		s.emit(events.TopicPipelineLayout, events.LayoutChanged{Reset: true})
		s.emit(events.TopicPipelineSelection, events.SelectionChanged{})
		s.setStatus(SeverityInfo, msgLayoutReset)
		return nil
	})
	return scene
}
