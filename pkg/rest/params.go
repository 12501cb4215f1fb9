package rest

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Params holds request parameters. Values may be scalars, slices (encoded as repeated keys)
// or nested maps (encoded as key[sub]).
type Params map[string]any

// mergeParams returns a new map with the entries of base overlaid by override.
func mergeParams(base, override Params) Params {
	out := make(Params, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeStrings(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

var indexSuffix = regexp.MustCompile(`\[\d+\]`)

// EncodeForm encodes params as an application/x-www-form-urlencoded string. Nested maps
// produce bracketed keys and list indices are removed, so that a list encodes as repeated
// bare keys (tag=a&tag=b). Keys are emitted in sorted order.
func EncodeForm(params Params) (string, error) {
	pairs, err := flatten(params)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, url.QueryEscape(p.key)+"="+url.QueryEscape(p.value))
	}
	return strings.Join(parts, "&"), nil
}

type pair struct {
	key   string
	value string
}

// flatten turns params into ordered key/value pairs using bracket notation for nested keys.
// List indices are dropped from the keys, so a list yields repeated bare keys.
func flatten(params Params) ([]pair, error) {
	var pairs []pair
	for _, k := range sortedKeys(params) {
		var err error
		pairs, err = appendValue(pairs, k, params[k])
		if err != nil {
			return nil, err
		}
	}
	for i := range pairs {
		pairs[i].key = indexSuffix.ReplaceAllString(pairs[i].key, "")
	}
	return pairs, nil
}

func appendValue(pairs []pair, key string, v any) ([]pair, error) {
	if v == nil {
		return pairs, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return pairs, nil
		}
		return appendValue(pairs, key, rv.Elem().Interface())
	}

	switch val := v.(type) {
	case string:
		return append(pairs, pair{key, val}), nil
	case []byte:
		return append(pairs, pair{key, string(val)}), nil
	case bool, fmt.Stringer:
		s, err := scalarString(val)
		if err != nil {
			return nil, ErrEncodeParameters.Msgf("parameter %q: %v", key, err)
		}
		return append(pairs, pair{key, s}), nil
	}

	var err error
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if pairs, err = appendValue(pairs, key+"["+strconv.Itoa(i)+"]", rv.Index(i).Interface()); err != nil {
				return nil, err
			}
		}
		return pairs, nil
	case reflect.Map:
		entries := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		for _, sub := range sortedKeys(entries) {
			if pairs, err = appendValue(pairs, key+"["+sub+"]", entries[sub]); err != nil {
				return nil, err
			}
		}
		return pairs, nil
	}

	s, err := scalarString(v)
	if err != nil {
		return nil, ErrEncodeParameters.Msgf("parameter %q: %v", key, err)
	}
	return append(pairs, pair{key, s}), nil
}

// scalarString renders booleans the way form encoders conventionally do (1/0).
func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case fmt.Stringer:
		return val.String(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.String:
		return rv.String(), nil
	}
	return "", fmt.Errorf("unsupported value of type %T", v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
