package graph

import (
	"bytes"
)

// Inputs maps field names to values, keeping insertion order. Overwriting a
// field keeps its position; deleting and re-adding moves it to the end.
type Inputs struct {
	keys []string
	vals map[string]Value
}

// NewInputs returns an empty input map.
func NewInputs() *Inputs {
	return &Inputs{vals: make(map[string]Value)}
}

// Len returns the number of set fields.
func (in *Inputs) Len() int {
	if in == nil {
		return 0
	}
	return len(in.keys)
}

// Keys returns field names in order.
func (in *Inputs) Keys() []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in.keys...)
}

// Get returns the value of a field.
func (in *Inputs) Get(field string) (Value, bool) {
	if in == nil {
		return nil, false
	}
	v, ok := in.vals[field]
	return v, ok
}

// Set stores a value. A nil value deletes the field.
func (in *Inputs) Set(field string, v Value) {
	if v == nil {
		in.Delete(field)
		return
	}
	if _, ok := in.vals[field]; !ok {
		in.keys = append(in.keys, field)
	}
	in.vals[field] = v
}

// Delete removes a field and reports whether it was set.
func (in *Inputs) Delete(field string) bool {
	if _, ok := in.vals[field]; !ok {
		return false
	}
	delete(in.vals, field)
	for i, k := range in.keys {
		if k == field {
			in.keys = append(in.keys[:i], in.keys[i+1:]...)
			break
		}
	}
	return true
}

// Range calls fn for each field in order until fn returns false.
func (in *Inputs) Range(fn func(field string, v Value) bool) {
	if in == nil {
		return
	}
	for _, k := range in.keys {
		if !fn(k, in.vals[k]) {
			return
		}
	}
}

// Clone returns an independent copy. Values are immutable and shared.
func (in *Inputs) Clone() *Inputs {
	out := NewInputs()
	in.Range(func(k string, v Value) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// MarshalJSON writes the fields as an object in order.
func (in *Inputs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	in.Range(func(k string, v Value) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		if err = writeKey(&buf, k); err != nil {
			return false
		}
		var data []byte
		if data, err = v.MarshalJSON(); err != nil {
			return false
		}
		buf.Write(data)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
