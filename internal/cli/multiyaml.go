package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// RequestSpec is one document of a request file.
type RequestSpec struct {
	Name    string            `mapstructure:"name"`
	Method  string            `mapstructure:"method" validate:"required"`
	URI     string            `mapstructure:"uri"`
	Params  map[string]any    `mapstructure:"params"`
	Headers map[string]string `mapstructure:"headers"`
	// Expect replaces the method's status expectation when set.
	Expect int `mapstructure:"expect" validate:"omitempty,min=100,max=599"`
}

// Label names the request in reports.
func (r RequestSpec) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return strings.ToUpper(r.Method) + " " + r.URI
}

var validate = validator.New()

// LoadRequests parses a request file into request specs. Every document must be a request;
// unknown keys are rejected.
func LoadRequests(filename string) ([]RequestSpec, error) {
	docs, err := ParseMultiYAML(filename)
	if err != nil {
		return nil, err
	}
	specs := make([]RequestSpec, 0, len(docs))
	for i, doc := range docs {
		var spec RequestSpec
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &spec,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		if err := validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ParseMultiYAML parses a file containing multiple YAML documents
// Returns a slice of maps containing the parsed YAML documents
func ParseMultiYAML(filename string) ([]map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	data = bytes.ReplaceAll(data, []byte("\t"), []byte("    "))

	data, err = PreprocessTemplate(data)
	if err != nil {
		return nil, err
	}

	return ParseMultiYAMLFromBytes(data)
}

// ParseMultiYAMLFromBytes parses byte data containing multiple YAML documents
// Returns a slice of maps containing the parsed YAML documents
func ParseMultiYAMLFromBytes(data []byte) ([]map[string]any, error) {
	// If data is empty or contains only whitespace or only --- separators, return empty slice
	content := strings.TrimSpace(string(data))
	if len(content) == 0 || strings.Trim(content, "- \n\t") == "" {
		return []map[string]any{}, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var result []map[string]any

	for {
		var doc map[string]any
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		// Skip empty documents (common with trailing ---)
		if len(doc) > 0 {
			result = append(result, doc)
		}
	}

	return result, nil
}
