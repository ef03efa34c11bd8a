// Package ordered decodes JSON objects while keeping the key order of the
// source document. encoding/json maps lose that order, but both the node
// catalog (natural field order) and workflow payloads (render order) depend
// on it.
package ordered

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when the decoded document is valid JSON but its
// root is not an object.
var ErrNotObject = errors.New("not a JSON object")

// Object is a JSON object with its keys in document order. A key that
// appears more than once keeps its first position and its last value, which
// matches how JSON.parse treats duplicates.
type Object struct {
	Keys   []string
	Values map[string]json.RawMessage
}

// New returns an empty object.
func New() *Object {
	return &Object{Values: make(map[string]json.RawMessage)}
}

// Len returns the number of distinct keys.
func (o *Object) Len() int { return len(o.Keys) }

// Get returns the raw value for key.
func (o *Object) Get(key string) (json.RawMessage, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// Set stores a value, appending the key if it is new.
func (o *Object) Set(key string, value json.RawMessage) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// Decode parses data as a single JSON object. Trailing data after the object
// is an error. A root that is valid JSON but not an object yields an error
// wrapping ErrNotObject.
func Decode(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		// Consume the rest so that syntax errors win over shape errors.
		if ok {
			if err := skipValue(dec, delim); err != nil {
				return nil, fmt.Errorf("reading JSON: %w", err)
			}
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, fmt.Errorf("reading JSON: unexpected data after top-level value")
		}
		return nil, ErrNotObject
	}

	obj := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading JSON: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("reading JSON: object key is %T", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("reading JSON value for %q: %w", key, err)
		}
		obj.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("reading JSON: unexpected data after top-level value")
	}
	return obj, nil
}

// IsObject reports whether raw holds a JSON object.
func IsObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// DecodeValue decodes raw as an object when it is one and returns an empty
// object otherwise. It is used for nested members whose wrong shape is
// tolerated rather than rejected.
func DecodeValue(raw json.RawMessage) *Object {
	if !IsObject(raw) {
		return New()
	}
	obj, err := Decode(raw)
	if err != nil {
		return New()
	}
	return obj
}

// MarshalJSON writes the object with its keys in order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v := o.Values[k]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// skipValue consumes tokens until the composite value opened by delim is
// closed.
func skipValue(dec *json.Decoder, delim json.Delim) error {
	if delim != '[' && delim != '{' {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}
