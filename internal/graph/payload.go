package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/nodegraph/internal/ordered"
)

// Payload is the interchange form of a graph: {id: {class_type, inputs}}
// with node order preserved.
type Payload struct {
	Nodes []PayloadNode
}

// PayloadNode is one entry of a payload.
type PayloadNode struct {
	ID        string
	ClassType string
	Inputs    *Inputs
}

// Len returns the number of nodes.
func (p Payload) Len() int { return len(p.Nodes) }

// MarshalJSON writes the payload as a single object in node order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range p.Nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, n.ID); err != nil {
			return nil, err
		}
		buf.WriteString(`{"class_type":`)
		ct, err := marshalString(n.ClassType)
		if err != nil {
			return nil, err
		}
		buf.Write(ct)
		buf.WriteString(`,"inputs":`)
		inputs := n.Inputs
		if inputs == nil {
			inputs = NewInputs()
		}
		data, err := inputs.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Indent renders the payload with two-space indentation, the textual view
// of the graph.
func (p Payload) Indent() (string, error) {
	data, err := p.MarshalJSON()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParsePayload decodes workflow text. Empty text, invalid JSON and a root
// that is not an object fail with ErrMalformedInput. Inside the object,
// wrong shapes are tolerated: a node that is not an object loads as an empty
// node, a missing or non-string class_type becomes "", and null inputs are
// dropped.
func ParsePayload(text string) (Payload, error) {
	if strings.TrimSpace(text) == "" {
		return Payload{}, fmt.Errorf("%w: empty text", ErrMalformedInput)
	}
	root, err := ordered.Decode([]byte(text))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	p := Payload{Nodes: make([]PayloadNode, 0, root.Len())}
	for _, id := range root.Keys {
		p.Nodes = append(p.Nodes, decodeNode(id, root.Values[id]))
	}
	return p, nil
}

func decodeNode(id string, raw json.RawMessage) PayloadNode {
	n := PayloadNode{ID: id, Inputs: NewInputs()}
	members := ordered.DecodeValue(raw)
	if ct, ok := members.Get("class_type"); ok {
		var s string
		if json.Unmarshal(ct, &s) == nil {
			n.ClassType = s
		}
	}
	if in, ok := members.Get("inputs"); ok {
		fields := ordered.DecodeValue(in)
		for _, name := range fields.Keys {
			if v, ok := DecodeValue(fields.Values[name]); ok {
				n.Inputs.Set(name, v)
			}
		}
	}
	return n
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := marshalString(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}
