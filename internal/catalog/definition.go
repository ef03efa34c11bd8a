package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/alfredjeanlab/nodegraph/internal/ordered"
)

// Group names an input group of a definition.
type Group string

const (
	Required Group = "required"
	Optional Group = "optional"
)

// Field is one declared input of a node type.
type Field struct {
	Name   string `json:"name"`
	Schema Schema `json:"schema"`
}

// Output is one declared output slot of a node type.
type Output struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	IsList  bool   `json:"is_list,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Definition is an immutable node type description from the engine.
type Definition struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`

	// Required and Optional hold fields in the schema's natural key order.
	Required []Field `json:"required"`
	Optional []Field `json:"optional"`

	// RequiredOrder and OptionalOrder carry the declared input_order. Nil
	// means no order was declared for the group.
	RequiredOrder []string `json:"required_order,omitempty"`
	OptionalOrder []string `json:"optional_order,omitempty"`

	Outputs    []Output `json:"outputs"`
	OutputNode bool     `json:"output_node,omitempty"`
}

// Title is the display name, falling back to the type name.
func (d *Definition) Title() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

// Fields returns the fields of a group in render order: the declared
// input_order when present (names without a schema are skipped), the natural
// order otherwise.
func (d *Definition) Fields(g Group) []Field {
	fields, order := d.Required, d.RequiredOrder
	if g == Optional {
		fields, order = d.Optional, d.OptionalOrder
	}
	if order == nil {
		return fields
	}
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	out := make([]Field, 0, len(order))
	for _, name := range order {
		if f, ok := byName[name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Field looks up a declared input in either group.
func (d *Definition) Field(name string) (Field, Group, bool) {
	for _, f := range d.Required {
		if f.Name == name {
			return f, Required, true
		}
	}
	for _, f := range d.Optional {
		if f.Name == name {
			return f, Optional, true
		}
	}
	return Field{}, "", false
}

// wireDefinition mirrors the object_info entry. Input groups stay raw so
// that their key order can be recovered.
type wireDefinition struct {
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Input       struct {
		Required json.RawMessage `json:"required"`
		Optional json.RawMessage `json:"optional"`
	} `json:"input"`
	InputOrder struct {
		Required []string `json:"required"`
		Optional []string `json:"optional"`
	} `json:"input_order"`
	Output         []json.RawMessage `json:"output"`
	OutputName     []json.RawMessage `json:"output_name"`
	OutputIsList   []json.RawMessage `json:"output_is_list"`
	OutputTooltips []json.RawMessage `json:"output_tooltips"`
	OutputNode     bool              `json:"output_node"`
}

// decodeDefinition decodes one entry leniently: members with the wrong shape
// fall back to their empty value instead of rejecting the definition.
func decodeDefinition(name string, raw json.RawMessage) *Definition {
	d := &Definition{Name: name}
	if !ordered.IsObject(raw) {
		return d
	}

	var w wireDefinition
	if err := json.Unmarshal(raw, &w); err != nil {
		// Fall back member by member.
		w = lenientWire(raw)
	}

	d.DisplayName = w.DisplayName
	d.Category = w.Category
	d.Description = w.Description
	d.Required = decodeFields(w.Input.Required)
	d.Optional = decodeFields(w.Input.Optional)
	d.RequiredOrder = w.InputOrder.Required
	d.OptionalOrder = w.InputOrder.Optional
	d.OutputNode = w.OutputNode

	for i, t := range w.Output {
		out := Output{Type: literalString(t)}
		if i < len(w.OutputName) {
			out.Name = optionalString(w.OutputName[i])
		}
		if i < len(w.OutputIsList) {
			out.IsList = optionalBool(w.OutputIsList[i])
		}
		if i < len(w.OutputTooltips) {
			out.Tooltip = optionalString(w.OutputTooltips[i])
		}
		d.Outputs = append(d.Outputs, out)
	}
	return d
}

func lenientWire(raw json.RawMessage) wireDefinition {
	var w wireDefinition
	members := ordered.DecodeValue(raw)
	for _, key := range members.Keys {
		v := members.Values[key]
		switch key {
		case "display_name":
			w.DisplayName = optionalString(v)
		case "category":
			w.Category = optionalString(v)
		case "description":
			w.Description = optionalString(v)
		case "input":
			groups := ordered.DecodeValue(v)
			w.Input.Required, _ = groups.Get("required")
			w.Input.Optional, _ = groups.Get("optional")
		case "input_order":
			groups := ordered.DecodeValue(v)
			if r, ok := groups.Get("required"); ok {
				_ = json.Unmarshal(r, &w.InputOrder.Required)
			}
			if o, ok := groups.Get("optional"); ok {
				_ = json.Unmarshal(o, &w.InputOrder.Optional)
			}
		case "output":
			_ = json.Unmarshal(v, &w.Output)
		case "output_name":
			_ = json.Unmarshal(v, &w.OutputName)
		case "output_is_list":
			_ = json.Unmarshal(v, &w.OutputIsList)
		case "output_tooltips":
			_ = json.Unmarshal(v, &w.OutputTooltips)
		case "output_node":
			w.OutputNode = optionalBool(v)
		}
	}
	return w
}

func decodeFields(raw json.RawMessage) []Field {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	group := ordered.DecodeValue(raw)
	fields := make([]Field, 0, group.Len())
	for _, name := range group.Keys {
		v := group.Values[name]
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		fields = append(fields, Field{Name: name, Schema: ParseSchema(v)})
	}
	return fields
}

func optionalString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func optionalBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}
