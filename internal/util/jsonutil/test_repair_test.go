package jsonutil

import (
	"errors"
	"testing"
)

func TestRepair(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a": [1, 2, `, `{"a": [1, 2]}`},
		{`{"name": "Mars`, `{"name": "Mars"}`},
		{`{"a": 1, "b`, `{"a": 1}`},
		{`{"a": 1, "b":`, `{"a": 1}`},
		{`{"a": tr`, `{}`},
		{`{"a": true`, `{"a": true}`},
		{`[1, 2,]`, `[1, 2]`},
		{`{"a": {"b": [{"c": 1.`, `{"a": {"b": [{"c": 1}]}}`},
		{`{"a": "x,]"}`, `{"a": "x,]"}`},
	}
	for _, tc := range cases {
		if got := Repair(tc.in); got != tc.want {
			t.Fatalf("Repair(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Sure!\n```json\n{\"a\":1}\n```", `{"a":1}`},
		{`Here: {"a": {"b": "}"}} and that is all`, `{"a": {"b": "}"}}`},
		{`[{"name": "Arles"}] done`, `[{"name": "Arles"}]`},
		{`{"a": [1, 2`, `{"a": [1, 2`},
	}
	for _, tc := range cases {
		got, err := ExtractJSON(tc.in)
		if err != nil {
			t.Fatalf("ExtractJSON(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ExtractJSON(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
	if _, err := ExtractJSON("no json here"); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Waypoints []struct {
			Name string `json:"name"`
		} `json:"waypoints"`
	}
	raw := "```json\n{\"waypoints\": [{\"name\": \"Nîmes\"}, {\"name\": \"Arl"
	if err := Decode([]byte(raw), &v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(v.Waypoints) != 2 || v.Waypoints[0].Name != "Nîmes" || v.Waypoints[1].Name != "Arl" {
		t.Fatalf("unexpected decode: %+v", v)
	}

	if err := Decode([]byte(`{"a": }`), &v); !errors.Is(err, ErrUnrepairable) {
		t.Fatalf("expected ErrUnrepairable, got %v", err)
	}
}

func TestMarshalNoEscape(t *testing.T) {
	out, err := MarshalNoEscape(map[string]string{"q": "a<b & c>d"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"q":"a<b & c>d"}` {
		t.Fatalf("got %s", out)
	}
}
