package bench

import (
	"embed"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// schemaFS contains the embedded workload JSON schema.
//
//go:embed workload-schema.json
var schemaFS embed.FS

// ValidationIssue is one schema violation in a workload file.
type ValidationIssue struct {
	Field       string
	Description string
}

// ValidateWorkloadFile checks a workload YAML file against the embedded
// JSON schema. A nil issue list means the file conforms; issues report
// violations without aborting on the first one.
func ValidateWorkloadFile(path string) ([]ValidationIssue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload file: %w", err)
	}

	return ValidateWorkloadBytes(raw)
}

// ValidateWorkloadBytes checks raw workload YAML against the embedded JSON
// schema.
func ValidateWorkloadBytes(raw []byte) ([]ValidationIssue, error) {
	var doc any

	parseErr := yaml.Unmarshal(raw, &doc)
	if parseErr != nil {
		return nil, fmt.Errorf("parse workload yaml: %w", parseErr)
	}

	schemaBytes, readErr := schemaFS.ReadFile("workload-schema.json")
	if readErr != nil {
		return nil, fmt.Errorf("read embedded schema: %w", readErr)
	}

	result, validateErr := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
	)
	if validateErr != nil {
		return nil, fmt.Errorf("schema validation: %w", validateErr)
	}

	if result.Valid() {
		return nil, nil
	}

	issues := make([]ValidationIssue, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		issues = append(issues, ValidationIssue{Field: verr.Field(), Description: verr.Description()})
	}

	return issues, nil
}
