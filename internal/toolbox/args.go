// ABOUTME: Typed accessors over the decoded arguments passed to a tool.
// ABOUTME: Missing or mistyped values surface as errors from the tool itself.

package toolbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingArgument indicates a required argument was not supplied.
var ErrMissingArgument = errors.New("missing required argument")

// ErrArgumentType indicates an argument could not be read as the requested type.
var ErrArgumentType = errors.New("argument has wrong type")

// Args holds the arguments for one invocation, defaults already merged in.
type Args map[string]any

// Has reports whether name is present with a non-null value.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

func (a Args) lookup(name string) (any, error) {
	v, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrMissingArgument, name)
	}
	return v, nil
}

func typeError(name, want string, v any) error {
	return fmt.Errorf("%w: '%s' must be %s, got %T", ErrArgumentType, name, want, v)
}

// String returns the named argument as a string.
func (a Args) String(name string) (string, error) {
	v, err := a.lookup(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(name, "a string", v)
	}
	return s, nil
}

// OptionalString returns the named argument as a string; ok is false when it is
// absent or null.
func (a Args) OptionalString(name string) (s string, ok bool, err error) {
	if !a.Has(name) {
		return "", false, nil
	}
	s, err = a.String(name)
	return s, err == nil, err
}

// Int returns the named argument as an int. Integral floats (as decoded from
// JSON) and numeric strings are accepted.
func (a Args) Int(name string) (int, error) {
	v, err := a.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, typeError(name, "an integer", v)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, typeError(name, "an integer", v)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, typeError(name, "an integer", v)
		}
		return i, nil
	default:
		return 0, typeError(name, "an integer", v)
	}
}

// Object returns the named argument as a JSON object. A null value yields an
// empty map.
func (a Args) Object(name string) (map[string]any, error) {
	v, err := a.lookup(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, typeError(name, "an object", v)
	}
	return m, nil
}

// StringSlice returns the named argument as a list of strings.
func (a Args) StringSlice(name string) ([]string, error) {
	v, err := a.lookup(name)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, typeError(fmt.Sprintf("%s[%d]", name, i), "a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, typeError(name, "a list of strings", v)
	}
}
