// Package fields turns a node and its definition into an editable form:
// one control per declared input, grouped into required and optional
// inputs, plus a read-only listing of output slots.
package fields

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/alfredjeanlab/nodegraph/internal/catalog"
	"github.com/alfredjeanlab/nodegraph/internal/graph"
)

// ErrUnknownField is returned by Edit for a field the definition does not
// declare.
var ErrUnknownField = errors.New("field not declared by node type")

// FallbackNotice is shown in place of fields for nodes of unknown type.
const FallbackNotice = "No definition is available for this node. Edit it in the workflow JSON."

// ConnectionPlaceholder is the hint for connection inputs that declare none.
const ConnectionPlaceholder = "connection (e.g. 5:0)"

// Control selects the widget a field is edited with.
type Control string

const (
	ControlSelect     Control = "select"
	ControlTextarea   Control = "textarea"
	ControlText       Control = "text"
	ControlNumber     Control = "number"
	ControlConnection Control = "connection"
)

// Field is one rendered input control.
type Field struct {
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Group       catalog.Group `json:"group"`
	Control     Control       `json:"control"`
	Kind        catalog.Kind  `json:"kind"`
	Type        string        `json:"type,omitempty"`
	Options     []string      `json:"options,omitempty"`
	Value       string        `json:"value"`
	Set         bool          `json:"set"`
	Placeholder string        `json:"placeholder,omitempty"`
	Tooltip     string        `json:"tooltip,omitempty"`
	Min         *float64      `json:"min,omitempty"`
	Max         *float64      `json:"max,omitempty"`
	Step        *float64      `json:"step,omitempty"`
}

// Group is a titled list of fields. Open reports whether a collapsible
// group starts expanded.
type Group struct {
	Title  string  `json:"title"`
	Open   bool    `json:"open"`
	Fields []Field `json:"fields"`
}

// Slot is one listed output.
type Slot struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	IsList  bool   `json:"is_list,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Form is everything needed to draw one node card.
type Form struct {
	NodeID    string `json:"node_id"`
	ClassType string `json:"class_type"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`

	// Fallback is set, and the groups are empty, when the node's type is
	// not in the catalog.
	Fallback string `json:"fallback,omitempty"`

	Required *Group `json:"required,omitempty"`
	Optional *Group `json:"optional,omitempty"`

	OutputsHeading string `json:"outputs_heading,omitempty"`
	Outputs        []Slot `json:"outputs,omitempty"`
	Terminal       bool   `json:"terminal,omitempty"`
}

// Render builds the form for a node. def may be nil.
func Render(node *graph.Node, def *catalog.Definition) Form {
	f := Form{
		NodeID:    node.ID,
		ClassType: node.ClassType,
		Title:     node.ClassType,
		Subtitle:  "ID " + node.ID,
	}
	if def == nil {
		f.Fallback = FallbackNotice
		return f
	}

	f.Title = def.Title()
	if def.Category != "" {
		f.Subtitle += " · " + def.Category
	}

	f.Required = &Group{Title: "Required inputs", Open: true, Fields: renderGroup(node, def, catalog.Required)}
	if len(def.Optional) > 0 {
		f.Optional = &Group{
			Title:  "Optional inputs",
			Open:   hasValues(node, def.Optional),
			Fields: renderGroup(node, def, catalog.Optional),
		}
	}

	f.Outputs = Outputs(def)
	if len(f.Outputs) > 0 {
		f.Terminal = def.OutputNode
		f.OutputsHeading = outputsHeading(def)
	}
	return f
}

func renderGroup(node *graph.Node, def *catalog.Definition, g catalog.Group) []Field {
	declared := def.Fields(g)
	out := make([]Field, 0, len(declared))
	for _, d := range declared {
		out = append(out, renderField(node, d, g))
	}
	return out
}

func renderField(node *graph.Node, d catalog.Field, g catalog.Group) Field {
	s := d.Schema
	f := Field{
		Name:    d.Name,
		Label:   d.Name,
		Group:   g,
		Kind:    s.Kind,
		Type:    s.Type,
		Tooltip: s.Config.Tooltip,
	}
	if g == catalog.Optional {
		f.Label += " (optional)"
	}

	stored, set := node.Inputs.Get(d.Name)
	f.Set = set

	switch s.Kind {
	case catalog.KindEnum:
		f.Control = ControlSelect
		f.Options = s.Options
		f.Value = valueOrDefault(stored, set, s, firstOption(s.Options))
	case catalog.KindString:
		f.Control = ControlText
		if s.Config.Multiline {
			f.Control = ControlTextarea
		}
		f.Placeholder = s.Config.Placeholder
		f.Value = valueOrDefault(stored, set, s, "")
	case catalog.KindInt, catalog.KindFloat:
		f.Control = ControlNumber
		f.Min, f.Max, f.Step = s.Config.Min, s.Config.Max, s.Config.Step
		f.Value = valueOrDefault(stored, set, s, "")
	default:
		f.Control = ControlConnection
		f.Placeholder = s.Config.Placeholder
		if f.Placeholder == "" {
			f.Placeholder = ConnectionPlaceholder
		}
		f.Value = FormatConnection(stored)
	}
	return f
}

func valueOrDefault(stored graph.Value, set bool, s catalog.Schema, fallback string) string {
	if set {
		return graph.Text(stored)
	}
	if s.Config.HasDefault {
		return defaultText(s.Config.Default)
	}
	return fallback
}

func defaultText(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case float64:
		return graph.Text(graph.Number(d))
	case bool:
		return strconv.FormatBool(d)
	default:
		data, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func firstOption(opts []string) string {
	if len(opts) == 0 {
		return ""
	}
	return opts[0]
}

func hasValues(node *graph.Node, declared []catalog.Field) bool {
	for _, d := range declared {
		if _, ok := node.Inputs.Get(d.Name); ok {
			return true
		}
	}
	return false
}

// Outputs lists a definition's output slots. Unnamed slots are called
// "Output n", counting from one.
func Outputs(def *catalog.Definition) []Slot {
	slots := make([]Slot, 0, len(def.Outputs))
	for i, o := range def.Outputs {
		name := o.Name
		if name == "" {
			name = fmt.Sprintf("Output %d", i+1)
		}
		slots = append(slots, Slot{Index: i, Name: name, Type: o.Type, IsList: o.IsList, Tooltip: o.Tooltip})
	}
	return slots
}

func outputsHeading(def *catalog.Definition) string {
	switch {
	case def.OutputNode:
		return "Workflow output"
	case len(def.Outputs) > 1:
		return "Outputs"
	default:
		return "Output"
	}
}

// FormatConnection renders a Connection or Pair as target:index and a
// String verbatim. Anything else renders empty.
func FormatConnection(v graph.Value) string {
	switch t := v.(type) {
	case graph.Connection:
		return t.String()
	case graph.Pair:
		return t.String()
	case graph.String:
		return string(t)
	default:
		return ""
	}
}

// Edit applies raw control text to one field immediately, coercing it by
// the field's schema kind.
func Edit(store *graph.Store, def *catalog.Definition, id, field, raw string) (graph.Value, error) {
	d, _, ok := def.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, def.Name, field)
	}
	v, ok := store.SetField(id, field, raw, d.Schema.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	return v, nil
}
