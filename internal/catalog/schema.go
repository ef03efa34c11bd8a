package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind is the decoded type tag of a field schema.
type Kind string

const (
	KindEnum   Kind = "ENUM"
	KindInt    Kind = "INT"
	KindFloat  Kind = "FLOAT"
	KindString Kind = "STRING"
	// KindOther covers every opaque engine type (IMAGE, MODEL, ...). Fields of
	// this kind are normally fed by connections.
	KindOther Kind = "OTHER"
)

// Config holds the optional second element of a field schema.
type Config struct {
	// Default is the declared default decoded from JSON (string, float64,
	// bool, []any or map[string]any). HasDefault is false when the key is
	// missing or null.
	Default    any  `json:"default,omitempty"`
	HasDefault bool `json:"has_default,omitempty"`

	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`

	Multiline   bool   `json:"multiline,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Tooltip     string `json:"tooltip,omitempty"`
}

// Schema is a field schema decoded once at catalog load: either an
// enumeration of literal strings or a scalar kind, plus its config.
type Schema struct {
	Kind Kind `json:"kind"`
	// Type is the raw type tag as declared ("INT", "IMAGE", ...). Empty for
	// enumerations.
	Type    string   `json:"type,omitempty"`
	Options []string `json:"options,omitempty"`
	Config  Config   `json:"config"`
}

// IsEnum reports whether the schema is a selectable enumeration.
func (s Schema) IsEnum() bool { return s.Kind == KindEnum }

// Default returns the value a newly inserted node gets for a required field
// with this schema. ok is false when the field stays unset.
func (s Schema) Default() (value any, ok bool) {
	switch s.Kind {
	case KindEnum:
		if s.Config.HasDefault {
			return s.Config.Default, true
		}
		if len(s.Options) > 0 {
			return s.Options[0], true
		}
		return nil, false
	case KindInt, KindFloat:
		if s.Config.HasDefault {
			return s.Config.Default, true
		}
		return nil, false
	case KindString:
		if s.Config.HasDefault {
			return s.Config.Default, true
		}
		return "", true
	default:
		return nil, false
	}
}

// ParseSchema decodes a schema in any of the shapes the engine emits:
// [tag], [tag, {config}], [[literals...], {config}] or a bare tag.
func ParseSchema(raw json.RawMessage) Schema {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Schema{Kind: KindOther}
	}

	var elems []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &elems); err != nil {
			return Schema{Kind: KindOther}
		}
	} else {
		elems = []json.RawMessage{raw}
	}
	if len(elems) == 0 {
		return Schema{Kind: KindOther}
	}

	s := parseTypeTag(elems[0])
	if len(elems) > 1 {
		s.Config = parseConfig(elems[1])
	}
	return s
}

func parseTypeTag(raw json.RawMessage) Schema {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var literals []json.RawMessage
		if err := json.Unmarshal(raw, &literals); err != nil {
			return Schema{Kind: KindOther}
		}
		opts := make([]string, 0, len(literals))
		for _, l := range literals {
			opts = append(opts, literalString(l))
		}
		return Schema{Kind: KindEnum, Options: opts}
	}

	var tag string
	if err := json.Unmarshal(raw, &tag); err != nil {
		return Schema{Kind: KindOther}
	}
	switch tag {
	case string(KindInt):
		return Schema{Kind: KindInt, Type: tag}
	case string(KindFloat):
		return Schema{Kind: KindFloat, Type: tag}
	case string(KindString):
		return Schema{Kind: KindString, Type: tag}
	default:
		return Schema{Kind: KindOther, Type: tag}
	}
}

func parseConfig(raw json.RawMessage) Config {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Config{}
	}

	var c Config
	if d, ok := fields["default"]; ok {
		var v any
		if err := json.Unmarshal(d, &v); err == nil && v != nil {
			c.Default = v
			c.HasDefault = true
		}
	}
	c.Min = numberField(fields, "min")
	c.Max = numberField(fields, "max")
	c.Step = numberField(fields, "step")
	if m, ok := fields["multiline"]; ok {
		var b bool
		if json.Unmarshal(m, &b) == nil {
			c.Multiline = b
		}
	}
	c.Placeholder = stringField(fields, "placeholder")
	c.Tooltip = stringField(fields, "tooltip")
	return c
}

func numberField(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// literalString renders an enumeration literal the way a select option
// value would show it.
func literalString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(bytes.TrimSpace(raw))
}
