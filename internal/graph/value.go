package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a stored field value. It is one of String, Number, Connection,
// Pair or Raw.
type Value interface {
	json.Marshaler
	isValue()
}

// String is a literal text value.
type String string

// Number is a literal numeric value.
type Number float64

// Connection references output Index of node Source. It serializes as
// [source, index].
type Connection struct {
	Source string
	Index  int
}

// Pair is a [target, index] reference whose index is not a number. It is
// kept verbatim and never treated as a live connection.
type Pair [2]string

// Raw is any other JSON value carried by a loaded payload, passed through
// untouched.
type Raw json.RawMessage

func (String) isValue()     {}
func (Number) isValue()     {}
func (Connection) isValue() {}
func (Pair) isValue()       {}
func (Raw) isValue()        {}

func (v String) MarshalJSON() ([]byte, error) { return marshalString(string(v)) }

func (v Number) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (c Connection) MarshalJSON() ([]byte, error) {
	src, err := marshalString(c.Source)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "[%s,%d]", src, c.Index), nil
}

func (p Pair) MarshalJSON() ([]byte, error) {
	a, err := marshalString(p[0])
	if err != nil {
		return nil, err
	}
	b, err := marshalString(p[1])
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "[%s,%s]", a, b), nil
}

func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

// String renders a connection in the target:index text syntax.
func (c Connection) String() string { return c.Source + ":" + strconv.Itoa(c.Index) }

// String renders a pair in the target:index text syntax.
func (p Pair) String() string { return p[0] + ":" + p[1] }

// DecodeValue converts one JSON input value. ok is false for null, which
// is dropped on load.
//
// [string, integer] becomes a Connection and [string, string] a Pair; other
// strings and numbers become String and Number; everything else is Raw.
func DecodeValue(raw json.RawMessage) (v Value, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return String(s), true
		}
	case '[':
		if v, ok := decodeReference(raw); ok {
			return v, true
		}
	case '{', 't', 'f':
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return Number(f), true
		}
	}
	return compactRaw(raw), true
}

func decodeReference(raw json.RawMessage) (Value, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || len(elems) != 2 {
		return nil, false
	}
	var source string
	if err := json.Unmarshal(elems[0], &source); err != nil {
		return nil, false
	}
	second := bytes.TrimSpace(elems[1])
	if len(second) > 0 && second[0] == '"' {
		var s string
		if err := json.Unmarshal(second, &s); err != nil {
			return nil, false
		}
		return Pair{source, s}, true
	}
	var f float64
	if err := json.Unmarshal(second, &f); err != nil {
		return nil, false
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return nil, false
	}
	return Connection{Source: source, Index: int(f)}, true
}

func compactRaw(raw json.RawMessage) Raw {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Raw(append([]byte(nil), raw...))
	}
	return Raw(buf.Bytes())
}

// FromDefault converts a schema default (as decoded by encoding/json) into
// a stored value.
func FromDefault(v any) (Value, bool) {
	switch d := v.(type) {
	case nil:
		return nil, false
	case string:
		return String(d), true
	case float64:
		return Number(d), true
	default:
		data, err := json.Marshal(d)
		if err != nil {
			return nil, false
		}
		return Raw(data), true
	}
}

// Equal reports whether two values are the same. Raw values compare by
// their compact bytes.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, aRaw := a.(Raw)
	rb, bRaw := b.(Raw)
	if aRaw || bRaw {
		return aRaw && bRaw && bytes.Equal(ra, rb)
	}
	return a == b
}

// marshalString encodes s without HTML escaping so the textual view shows
// characters like < and & verbatim.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Text renders a value the way an input control displays it.
func Text(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case String:
		return string(t)
	case Number:
		return formatNumber(float64(t))
	case Connection:
		return t.String()
	case Pair:
		return t.String()
	case Raw:
		return string(t)
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
