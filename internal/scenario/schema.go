package scenario

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed suite.schema.json
var suiteSchema []byte

var suiteSchemaLoader = gojsonschema.NewBytesLoader(suiteSchema)

// SchemaError is one schema violation in a suite file
type SchemaError struct {
	Path    string
	Message string
}

// SchemaErrors lists every violation found in a suite file
type SchemaErrors []SchemaError

func (e SchemaErrors) Error() string {
	lines := make([]string, len(e))
	for i, se := range e {
		lines[i] = "   - " + se.Path + ": " + se.Message
	}
	return "suite file failed schema validation:\n" + strings.Join(lines, "\n")
}

// Schema returns the JSON Schema suite files are checked against
func Schema() []byte { return suiteSchema }

// ValidateDocument checks YAML suite source against the schema without decoding it
func ValidateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse suite YAML: %w", err)
	}
	// yaml.v3 decodes mappings with string keys into map[string]any, which
	// encoding/json can marshal for the schema loader
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("suite is not representable as JSON: %w", err)
	}
	result, err := gojsonschema.Validate(suiteSchemaLoader, gojsonschema.NewBytesLoader(docJSON))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	errs := make(SchemaErrors, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, SchemaError{Path: re.Field(), Message: re.Description()})
	}
	return errs
}

// Parse validates and decodes a YAML suite
func Parse(data []byte) (*Suite, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode suite: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads the suite at path. An empty path returns DefaultSuite.
func Load(path string) (*Suite, error) {
	if path == "" {
		return DefaultSuite(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
