package ordered

import (
	"errors"
	"testing"
)

func TestDecode_KeepsOrder(t *testing.T) {
	obj, err := Decode([]byte(`{"b":1,"a":{"x":[1,2]},"10":"z","2":null}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []string{"b", "a", "10", "2"}
	if len(obj.Keys) != len(want) {
		t.Fatalf("keys = %v, want %v", obj.Keys, want)
	}
	for i, k := range want {
		if obj.Keys[i] != k {
			t.Errorf("keys[%d] = %q, want %q", i, obj.Keys[i], k)
		}
	}
	if got := string(obj.Values["a"]); got != `{"x":[1,2]}` {
		t.Errorf("a = %s", got)
	}
}

func TestDecode_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	obj, err := Decode([]byte(`{"a":1,"b":2,"a":3}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if obj.Len() != 2 || obj.Keys[0] != "a" || obj.Keys[1] != "b" {
		t.Fatalf("keys = %v", obj.Keys)
	}
	if string(obj.Values["a"]) != "3" {
		t.Errorf("a = %s, want 3", obj.Values["a"])
	}
}

func TestDecode_Errors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		input     string
		notObject bool
	}{
		{name: "Truncated", input: `{`},
		{name: "Garbage", input: `nope`},
		{name: "Empty", input: ``},
		{name: "Trailing", input: `{} {}`},
		{name: "Array", input: `[1,2]`, notObject: true},
		{name: "Number", input: `5`, notObject: true},
		{name: "Null", input: `null`, notObject: true},
		{name: "BrokenArray", input: `[1,`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrNotObject); got != tc.notObject {
				t.Errorf("errors.Is(err, ErrNotObject) = %v, want %v (err=%v)", got, tc.notObject, err)
			}
		})
	}
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	in := `{"z":1,"y":[true],"x":{"k":"v"}}`
	obj, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, err := obj.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != in {
		t.Errorf("got %s, want %s", out, in)
	}
}

func TestDecodeValue_ToleratesNonObjects(t *testing.T) {
	if got := DecodeValue([]byte(`[1]`)); got.Len() != 0 {
		t.Errorf("array: len = %d, want 0", got.Len())
	}
	if got := DecodeValue(nil); got.Len() != 0 {
		t.Errorf("nil: len = %d, want 0", got.Len())
	}
	if got := DecodeValue([]byte(` {"a":1}`)); got.Len() != 1 {
		t.Errorf("object: len = %d, want 1", got.Len())
	}
}
