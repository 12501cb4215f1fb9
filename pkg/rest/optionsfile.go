package rest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadOverridesFile reads client options from a TOML, YAML or JSON file, chosen by extension.
// The file uses the same keys as OverridesFromMap, so unknown keys are rejected.
func LoadOverridesFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, ErrInvalidOptions.MsgErr("unable to read options file "+path, err)
	}
	return ParseOverrides(data, filepath.Ext(path))
}

// ParseOverrides decodes option data in the given format: "toml", "yaml", "yml" or "json",
// with or without a leading dot.
func ParseOverrides(data []byte, format string) (Overrides, error) {
	raw := make(map[string]any)
	var err error
	switch f := strings.TrimPrefix(strings.ToLower(format), "."); f {
	case "toml":
		err = toml.Unmarshal(data, &raw)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &raw)
	case "json":
		err = json.Unmarshal(data, &raw)
	default:
		return Overrides{}, ErrInvalidOptions.Msgf("unsupported options format %q", format)
	}
	if err != nil {
		return Overrides{}, ErrInvalidOptions.MsgErr("unable to parse options", err)
	}
	return OverridesFromMap(raw)
}
