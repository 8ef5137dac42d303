// ABOUTME: Converts tool return values into JSON-safe primitives before they hit the wire.
// ABOUTME: Handles document-store identifiers, date/time values and numeric arrays.

package serialize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrSerialization indicates a value has no conversion to a JSON-safe form.
var ErrSerialization = errors.New("value is not serializable")

// maxDepth bounds recursion through nested containers.
const maxDepth = 64

// TimeLayout is the ISO-8601 layout used for every date/time value.
const TimeLayout = time.RFC3339Nano

// Value converts v into a tree of nil, bool, string, int64, uint64, float64,
// json.Number, json.RawMessage, []byte, []any and map[string]any.
func Value(v any) (any, error) {
	return convert(v, "$", 0)
}

func unsupported(path string, v any, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: %T at %s", ErrSerialization, v, path)
	}
	return fmt.Errorf("%w: %T at %s: %s", ErrSerialization, v, path, reason)
}

func convert(v any, path string, depth int) (any, error) {
	if depth > maxDepth {
		return nil, unsupported(path, v, "nesting too deep")
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool, json.Number:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return uint64(val), nil
	case uint8:
		return uint64(val), nil
	case uint16:
		return uint64(val), nil
	case uint32:
		return uint64(val), nil
	case uint64:
		return val, nil
	case float32:
		return checkFloat(float64(val), path, v)
	case float64:
		return checkFloat(val, path, v)
	case []byte:
		return val, nil
	case json.RawMessage:
		if !json.Valid(val) {
			return nil, unsupported(path, v, "invalid raw JSON")
		}
		return val, nil
	case time.Time:
		return val.Format(TimeLayout), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return val.Format(TimeLayout), nil
	case primitive.ObjectID:
		return val.Hex(), nil
	case primitive.DateTime:
		return val.Time().UTC().Format(TimeLayout), nil
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC().Format(TimeLayout), nil
	case primitive.Decimal128:
		return val.String(), nil
	case primitive.Binary:
		return val.Data, nil
	case primitive.Regex:
		return val.String(), nil
	case primitive.Null, primitive.Undefined:
		return nil, nil
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			converted, err := convert(elem.Value, path+"."+elem.Key, depth+1)
			if err != nil {
				return nil, err
			}
			out[elem.Key] = converted
		}
		return out, nil
	case map[string]any:
		return convertStringMap(val, path, depth)
	case primitive.M:
		return convertStringMap(val, path, depth)
	case []any:
		return convertList(val, path, depth)
	case primitive.A:
		return convertList(val, path, depth)
	case json.Marshaler:
		return viaJSON(val, path)
	}

	return convertReflect(reflect.ValueOf(v), path, depth)
}

func checkFloat(f float64, path string, v any) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, unsupported(path, v, "NaN and Inf have no JSON form")
	}
	return f, nil
}

func convertStringMap(m map[string]any, path string, depth int) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		converted, err := convert(item, path+"."+k, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = converted
	}
	return out, nil
}

func convertList(list []any, path string, depth int) ([]any, error) {
	out := make([]any, len(list))
	for i, item := range list {
		converted, err := convert(item, path+"["+strconv.Itoa(i)+"]", depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

// viaJSON round-trips a value through encoding/json into generic containers.
// Numbers come back as json.Number so integers keep their exact digits.
func viaJSON(v any, path string) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, unsupported(path, v, err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, unsupported(path, v, err.Error())
	}
	return out, nil
}

// convertReflect handles named types, typed slices/arrays (numeric vectors and
// matrices), typed maps, pointers and structs.
func convertReflect(rv reflect.Value, path string, depth int) (any, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return convert(rv.Elem().Interface(), path, depth+1)
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return checkFloat(rv.Float(), path, rv.Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return []any{}, nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			converted, err := convert(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]", depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := mapKey(iter.Key(), path)
			if err != nil {
				return nil, err
			}
			converted, err := convert(iter.Value().Interface(), path+"."+key, depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case reflect.Struct:
		return viaJSON(rv.Interface(), path)
	default:
		return nil, unsupported(path, rv.Interface(), "")
	}
}

func mapKey(k reflect.Value, path string) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	if oid, ok := k.Interface().(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return "", unsupported(path, k.Interface(), "map key has no string form")
}
