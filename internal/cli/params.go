package cli

import (
	"fmt"
	"strings"

	"github.com/tansive/restclient/pkg/rest"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// parseParams assembles request parameters from command line arguments.
//
//	key=value    sets a string
//	key:=json    sets a raw JSON value (number, bool, array, object, null)
//
// Keys are sjson paths: "user.name=x" nests, "tags.-1=a" appends to an array.
func parseParams(args []string) (rest.Params, error) {
	doc := "{}"
	var err error
	for _, arg := range args {
		if key, raw, ok := strings.Cut(arg, ":="); ok && !strings.Contains(key, "=") {
			if key == "" {
				return nil, fmt.Errorf("invalid parameter %q: empty key", arg)
			}
			if !gjson.Valid(raw) {
				return nil, fmt.Errorf("invalid parameter %q: value is not valid JSON", arg)
			}
			doc, err = sjson.SetRaw(doc, key, raw)
		} else if key, value, ok := strings.Cut(arg, "="); ok {
			if key == "" {
				return nil, fmt.Errorf("invalid parameter %q: empty key", arg)
			}
			doc, err = sjson.Set(doc, key, value)
		} else {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value or key:=json", arg)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid parameter %q: %w", arg, err)
		}
	}
	params, ok := gjson.Parse(doc).Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid parameters")
	}
	return rest.Params(params), nil
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(headers []string) (map[string]string, error) {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}
