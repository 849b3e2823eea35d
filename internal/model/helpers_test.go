package model

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return m
}

func decodeNumbers(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return m
}

// assertSameValues checks that every key of want, except skip, comes back
// from got with the same JSON value.
func assertSameValues(t *testing.T, want, got map[string]any, skip ...string) {
	t.Helper()
	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal fields: %v", err)
	}
	var norm map[string]any
	if err := json.Unmarshal(raw, &norm); err != nil {
		t.Fatalf("unmarshal fields: %v", err)
	}
	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}
	for k, v := range want {
		if skipped[k] {
			continue
		}
		if !reflect.DeepEqual(v, norm[k]) {
			t.Errorf("field %q: got %#v, want %#v", k, norm[k], v)
		}
	}
}

func mustValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	return ve
}
