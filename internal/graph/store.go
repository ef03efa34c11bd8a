// Package graph holds the live node graph: nodes keyed by id, their render
// order, and the id counter. It knows nothing about views; callers render
// from it and write back through its operations.
package graph

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
)

var (
	// ErrUnknownType is returned by Insert for a type absent from the catalog.
	ErrUnknownType = errors.New("unknown node type")
	// ErrMalformedInput is returned when workflow text cannot be parsed.
	ErrMalformedInput = errors.New("malformed workflow")
	// ErrNodeNotFound is returned by callers that address a missing node.
	ErrNodeNotFound = errors.New("node not found")
)

// Node is one computation unit. ClassType may name a type the catalog does
// not know; such nodes are kept and serialized as-is.
type Node struct {
	ID        string
	ClassType string
	Inputs    *Inputs
}

// FieldRef names one input of one node.
type FieldRef struct {
	Node  string `json:"node"`
	Field string `json:"field"`
}

// Store is the in-memory graph. It is not safe for concurrent use; the
// editor session serializes access.
type Store struct {
	catalog *catalog.Catalog
	nodes   map[string]*Node
	order   []string
	next    int
}

// NewStore returns an empty graph backed by cat for type lookups.
func NewStore(cat *catalog.Catalog) *Store {
	if cat == nil {
		cat = catalog.Empty()
	}
	return &Store{
		catalog: cat,
		nodes:   make(map[string]*Node),
		next:    1,
	}
}

// Catalog returns the definitions the store validates against.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.order) }

// Order returns node ids in render order.
func (s *Store) Order() []string { return append([]string(nil), s.order...) }

// Node returns a node by id. The returned node must not be modified.
func (s *Store) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Counter returns the next candidate id number.
func (s *Store) Counter() int { return s.next }

// Insert adds a node of the given type with schema defaults seeded into its
// required fields and returns its new id.
func (s *Store) Insert(typeName string) (string, error) {
	def, ok := s.catalog.Lookup(typeName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}

	id := s.allocate()
	n := &Node{ID: id, ClassType: typeName, Inputs: NewInputs()}
	for _, f := range def.Required {
		d, ok := f.Schema.Default()
		if !ok {
			continue
		}
		if v, ok := FromDefault(d); ok {
			n.Inputs.Set(f.Name, v)
		}
	}
	s.nodes[id] = n
	s.order = append(s.order, id)
	return id, nil
}

// allocate returns the first unused id at or after the counter and advances
// the counter past it. Ids are never handed out twice, even after removal.
func (s *Store) allocate() string {
	for {
		if _, used := s.nodes[strconv.Itoa(s.next)]; !used {
			break
		}
		s.next++
	}
	id := strconv.Itoa(s.next)
	s.next++
	return id
}

// Remove deletes a node and clears every connection that pointed at it.
// Downstream nodes survive. It returns the cleared fields and whether the
// node existed.
func (s *Store) Remove(id string) ([]FieldRef, bool) {
	if _, ok := s.nodes[id]; !ok {
		return nil, false
	}
	delete(s.nodes, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	var cleared []FieldRef
	for _, oid := range s.order {
		n := s.nodes[oid]
		for _, field := range n.Inputs.Keys() {
			v, _ := n.Inputs.Get(field)
			if c, ok := v.(Connection); ok && c.Source == id {
				n.Inputs.Delete(field)
				cleared = append(cleared, FieldRef{Node: oid, Field: field})
			}
		}
	}
	return cleared, true
}

// SetField coerces raw control text for a field of the given kind and
// stores it, or unsets the field when the coerced value is empty. It returns
// the stored value (nil when unset) and whether the node exists.
func (s *Store) SetField(id, field, raw string, kind catalog.Kind) (Value, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	v := Coerce(kind, raw)
	n.Inputs.Set(field, v)
	return v, true
}

// SetValue stores an already typed value; nil unsets the field.
func (s *Store) SetValue(id, field string, v Value) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	n.Inputs.Set(field, v)
	return true
}

// Connect points target's field at output index of source, replacing any
// previous value. No type or cycle checks are made.
func (s *Store) Connect(target, field, source string, index int) bool {
	return s.SetValue(target, field, Connection{Source: source, Index: index})
}

// DisconnectField unsets a field if it currently holds a Connection.
func (s *Store) DisconnectField(target, field string) bool {
	n, ok := s.nodes[target]
	if !ok {
		return false
	}
	v, ok := n.Inputs.Get(field)
	if !ok {
		return false
	}
	if _, isConn := v.(Connection); !isConn {
		return false
	}
	return n.Inputs.Delete(field)
}

// Connections returns every Connection in the graph, in node order then
// field order.
func (s *Store) Connections() []Link {
	var links []Link
	for _, id := range s.order {
		s.nodes[id].Inputs.Range(func(field string, v Value) bool {
			if c, ok := v.(Connection); ok {
				links = append(links, Link{Target: FieldRef{Node: id, Field: field}, Source: c})
			}
			return true
		})
	}
	return links
}

// Link is one live edge: an input field fed by a source output.
type Link struct {
	Target FieldRef
	Source Connection
}

// Serialize returns the graph as an interchange payload in render order.
func (s *Store) Serialize() Payload {
	p := Payload{Nodes: make([]PayloadNode, 0, len(s.order))}
	for _, id := range s.order {
		n := s.nodes[id]
		p.Nodes = append(p.Nodes, PayloadNode{
			ID:        id,
			ClassType: n.ClassType,
			Inputs:    n.Inputs.Clone(),
		})
	}
	return p
}

// LoadFromPayload replaces the whole graph. The id counter restarts at the
// larger of the highest numeric id plus one and the node count plus one.
func (s *Store) LoadFromPayload(p Payload) {
	s.nodes = make(map[string]*Node, len(p.Nodes))
	s.order = make([]string, 0, len(p.Nodes))
	for _, pn := range p.Nodes {
		inputs := pn.Inputs
		if inputs == nil {
			inputs = NewInputs()
		} else {
			inputs = inputs.Clone()
		}
		if _, dup := s.nodes[pn.ID]; !dup {
			s.order = append(s.order, pn.ID)
		}
		s.nodes[pn.ID] = &Node{ID: pn.ID, ClassType: pn.ClassType, Inputs: inputs}
	}

	maxNumeric := 0
	for _, id := range s.order {
		if n, ok := numericPrefix(id); ok && n > maxNumeric {
			maxNumeric = n
		}
	}
	s.next = max(maxNumeric+1, len(s.order)+1)
}
