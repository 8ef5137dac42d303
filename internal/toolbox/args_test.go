// ABOUTME: Tests for typed argument accessors.
// ABOUTME: Covers JSON-decoded numbers, missing arguments and type mismatches.

package toolbox

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestArgsString(t *testing.T) {
	args := Args{"name": "alice", "count": 3.0, "nothing": nil}

	s, err := args.String("name")
	if err != nil || s != "alice" {
		t.Errorf("expected alice, got %q (%v)", s, err)
	}
	if _, err := args.String("missing"); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
	if _, err := args.String("count"); !errors.Is(err, ErrArgumentType) {
		t.Errorf("expected ErrArgumentType, got %v", err)
	}

	if _, ok, err := args.OptionalString("nothing"); ok || err != nil {
		t.Errorf("expected null to be absent, got ok=%v err=%v", ok, err)
	}
	if s, ok, err := args.OptionalString("name"); !ok || err != nil || s != "alice" {
		t.Errorf("expected alice, got %q ok=%v err=%v", s, ok, err)
	}
}

func TestArgsInt(t *testing.T) {
	cases := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"int", 5, 5, false},
		{"int64", int64(7), 7, false},
		{"integral float", 10.0, 10, false},
		{"fractional float", 10.5, 0, true},
		{"json number", json.Number("42"), 42, false},
		{"numeric string", " 12 ", 12, false},
		{"word", "twelve", 0, true},
		{"bool", true, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Args{"n": tc.value}.Int("n")
			if tc.wantErr {
				if !errors.Is(err, ErrArgumentType) {
					t.Errorf("expected ErrArgumentType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestArgsObject(t *testing.T) {
	args := Args{"filter": map[string]any{"a": 1.0}, "none": nil, "bad": "x"}

	m, err := args.Object("filter")
	if err != nil || m["a"] != 1.0 {
		t.Errorf("unexpected object %v (%v)", m, err)
	}
	m, err = args.Object("none")
	if err != nil || m == nil || len(m) != 0 {
		t.Errorf("expected empty map for null, got %v (%v)", m, err)
	}
	if _, err := args.Object("bad"); !errors.Is(err, ErrArgumentType) {
		t.Errorf("expected ErrArgumentType, got %v", err)
	}
}

func TestArgsStringSlice(t *testing.T) {
	args := Args{"ids": []any{"a", "b"}, "typed": []string{"x"}, "mixed": []any{"a", 1.0}}

	ids, err := args.StringSlice("ids")
	if err != nil || !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("unexpected ids %v (%v)", ids, err)
	}
	typed, err := args.StringSlice("typed")
	if err != nil || !reflect.DeepEqual(typed, []string{"x"}) {
		t.Errorf("unexpected typed %v (%v)", typed, err)
	}
	if _, err := args.StringSlice("mixed"); !errors.Is(err, ErrArgumentType) {
		t.Errorf("expected ErrArgumentType, got %v", err)
	}
}
