package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const schemaURL = "manifest.schema.json"

//go:embed schema/manifest.schema.json
var schemaBytes []byte

var printer = message.NewPrinter(language.English)

// loadSchema compiles the embedded schema on first use.
var loadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling schema JSON: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return schema, nil
})

// ValidationResult contains the outcome of a schema validation.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue is one schema violation.
type ValidationIssue struct {
	Path    string // Instance location (e.g., "/latestVersion/versionCode")
	Message string
	Keyword string // Failing schema keyword (e.g., "required", "minimum")
}

// Validate checks YAML or JSON bytes against the manifest schema. The error
// return is reserved for unreadable input; schema violations are reported in
// the result, ordered by path.
func Validate(data []byte) (*ValidationResult, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	inst, err := toInstance(data)
	if err != nil {
		return nil, err
	}

	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}
	return &ValidationResult{Issues: issuesOf(ve)}, nil
}

// ValidateFile reads a file and validates it against the manifest schema.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Validate(data)
}

// toInstance decodes YAML and re-encodes it as JSON so numbers reach the
// validator as json.Number.
func toInstance(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	jsonData, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("preparing JSON for validation: %w", err)
	}
	return inst, nil
}

// issuesOf flattens the error tree into its leaves.
func issuesOf(root *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	var walk func(ve *jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		for _, cause := range ve.Causes {
			walk(cause)
		}
		if len(ve.Causes) > 0 || ve.ErrorKind == nil {
			return
		}
		keywords := ve.ErrorKind.KeywordPath()
		if len(keywords) == 0 {
			return
		}
		var path string
		if len(ve.InstanceLocation) > 0 {
			path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		issues = append(issues, ValidationIssue{
			Path:    path,
			Message: ve.ErrorKind.LocalizedString(printer),
			Keyword: keywords[len(keywords)-1],
		})
	}
	walk(root)

	if len(issues) == 0 {
		return []ValidationIssue{{Message: root.Error()}}
	}
	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		return strings.Compare(a.Path, b.Path)
	})
	return issues
}

// stringKeys converts YAML mappings with non-string keys into JSON objects.
func stringKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = stringKeys(item)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = stringKeys(item)
		}
		return m
	case []any:
		for i, item := range val {
			val[i] = stringKeys(item)
		}
		return val
	default:
		return val
	}
}
