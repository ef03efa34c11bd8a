package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/events"
	"github.com/alfredjeanlab/nodegraph/internal/fields"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
	"github.com/alfredjeanlab/nodegraph/internal/pipeline"
)

// ErrNoDefinition is returned for field edits on a node whose type the
// catalog does not know.
var ErrNoDefinition = errors.New("no definition for node type")

// Options returns the catalog options matching q.
func (s *Session) Options(q string) []catalog.Option {
	return s.catalog.Filter(q)
}

// Definition looks up one node type.
func (s *Session) Definition(typeName string) (*catalog.Definition, bool) {
	return s.catalog.Lookup(typeName)
}

// Insert adds a node of typeName and returns its id.
func (s *Session) Insert(typeName string) (string, error) {
	var id string
	err := s.run("insert", func() error {
		typeName = strings.TrimSpace(typeName)
		if typeName == "" {
			return s.fail(fmt.Errorf("%w: no type selected", graph.ErrUnknownType), msgSelectType)
		}
		var err error
		id, err = s.store.Insert(typeName)
		if err != nil {
			return s.fail(err, "Unknown node type: "+typeName)
		}
		s.emit(events.TopicNodeInserted, events.NodeInserted{NodeID: id, ClassType: typeName})
		s.changed()
		s.setStatus(SeveritySuccess, fmt.Sprintf("Node %s (%s) added.", typeName, id))
		s.logger.Debug("node inserted", "node_id", id, "class_type", typeName)
		return nil
	})
	return id, err
}

// Remove deletes a node and clears every connection that pointed at it.
// It reports whether the node existed.
func (s *Session) Remove(id string) bool {
	var removed bool
	_ = s.run("remove", func() error {
		cleared, ok := s.store.Remove(id)
		if !ok {
			return nil
		}
		removed = true
		s.view.Forget(id)
		s.emit(events.TopicNodeRemoved, events.NodeRemoved{NodeID: id, Cleared: cleared})
		s.changed()
		s.setStatus(SeveritySuccess, fmt.Sprintf("Node %s removed.", id))
		return nil
	})
	return removed
}

// Form renders the editing form of one node.
func (s *Session) Form(id string) (fields.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.store.Node(id)
	if !ok {
		return fields.Form{}, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	def, _ := s.catalog.Lookup(n.ClassType)
	return fields.Render(n, def), nil
}

// Forms renders every node in order.
func (s *Session) Forms() []fields.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	forms := make([]fields.Form, 0, s.store.Len())
	for _, id := range s.store.Order() {
		n, _ := s.store.Node(id)
		def, _ := s.catalog.Lookup(n.ClassType)
		forms = append(forms, fields.Render(n, def))
	}
	return forms
}

// SetField applies control text to one field, coerced by the field's
// schema. It returns the stored value, nil when the field was cleared.
func (s *Session) SetField(id, field, raw string) (graph.Value, error) {
	var v graph.Value
	err := s.run("set", func() error {
		n, ok := s.store.Node(id)
		if !ok {
			return s.fail(fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id), fmt.Sprintf("Node %s not found.", id))
		}
		def, ok := s.catalog.Lookup(n.ClassType)
		if !ok {
			return s.fail(fmt.Errorf("%w: %q", ErrNoDefinition, n.ClassType), fields.FallbackNotice)
		}
		var err error
		v, err = fields.Edit(s.store, def, id, field, raw)
		if err != nil {
			return s.fail(err, fmt.Sprintf("Unknown field %s on node %s.", field, id))
		}
		s.emit(events.TopicFieldUpdated, events.FieldUpdated{NodeID: id, Field: field, Value: v})
		s.changed()
		return nil
	})
	return v, err
}

// Connect feeds target.field from output index of source, replacing any
// previous value. Cycles are allowed.
func (s *Session) Connect(target, field, source string, index int) error {
	return s.run("connect", func() error {
		if index < 0 {
			return s.fail(fmt.Errorf("%w: negative output index %d", pipeline.ErrNoPort, index), "Output index must not be negative.")
		}
		if !s.store.Connect(target, field, source, index) {
			return s.fail(fmt.Errorf("%w: %s", graph.ErrNodeNotFound, target), fmt.Sprintf("Node %s not found.", target))
		}
		s.connected(pipeline.OutputRef{Node: source, Index: index}, graph.FieldRef{Node: target, Field: field})
		return nil
	})
}

// Disconnect removes the connection feeding target.field. Other values are
// left alone. It reports whether a connection was removed.
func (s *Session) Disconnect(target, field string) (bool, error) {
	var removed bool
	err := s.run("disconnect", func() error {
		n, ok := s.store.Node(target)
		if !ok {
			return s.fail(fmt.Errorf("%w: %s", graph.ErrNodeNotFound, target), fmt.Sprintf("Node %s not found.", target))
		}
		cur, _ := n.Inputs.Get(field)
		conn, isConn := cur.(graph.Connection)
		if !isConn || !s.store.DisconnectField(target, field) {
			return nil
		}
		removed = true
		s.disconnected(pipeline.OutputRef{Node: conn.Source, Index: conn.Index}, graph.FieldRef{Node: target, Field: field})
		return nil
	})
	return removed, err
}

func (s *Session) connected(from pipeline.OutputRef, to graph.FieldRef) {
	s.emit(events.TopicConnectionAdded, events.ConnectionAdded{From: from, To: to})
	s.changed()
	s.setStatus(SeveritySuccess, fmt.Sprintf("Connected: %s:%d → %s.%s", from.Node, from.Index, to.Node, to.Field))
}

func (s *Session) disconnected(from pipeline.OutputRef, to graph.FieldRef) {
	s.emit(events.TopicConnectionRemoved, events.ConnectionRemoved{From: from, To: to})
	s.changed()
	s.setStatus(SeverityInfo, fmt.Sprintf("Connection %s.%s removed.", to.Node, to.Field))
}
