// Package main regenerates the workload JSON schema embedded in
// internal/bench from the bench.Workload model. Field names and base types
// come from reflection over the struct tags; value constraints the type
// system cannot express (enums, bounds, required fields) come from the
// constraint table below, which must be kept in sync with the model's
// Validate rules.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/Sumatoshi-tech/slabtree/internal/bench"
)

// Schema is the subset of JSON Schema draft-07 the workload format needs.
type Schema struct {
	SchemaURI            string      `json:"$schema,omitempty"`
	Title                string      `json:"title,omitempty"`
	Description          string      `json:"description,omitempty"`
	Type                 string      `json:"type,omitempty"`
	AdditionalProperties *bool       `json:"additionalProperties,omitempty"`
	Required             []string    `json:"required,omitempty"`
	Properties           *properties `json:"properties,omitempty"`
	MinLength            *int        `json:"minLength,omitempty"`
	Minimum              *int        `json:"minimum,omitempty"`
	Maximum              *int        `json:"maximum,omitempty"`
	MinItems             *int        `json:"minItems,omitempty"`
	Enum                 []string    `json:"enum,omitempty"`
	Items                *Schema     `json:"items,omitempty"`
}

// properties marshals as a JSON object that preserves struct field order,
// so regenerating the schema never reshuffles the checked-in file.
type properties struct {
	names   []string
	schemas map[string]*Schema
}

func (p *properties) add(name string, s *Schema) {
	if p.schemas == nil {
		p.schemas = make(map[string]*Schema)
	}

	p.names = append(p.names, name)
	p.schemas[name] = s
}

func (p *properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(p.schemas[name])
		if err != nil {
			return nil, err
		}

		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// constraint augments one reflected field with rules from the model's
// Validate logic.
type constraint struct {
	required  bool
	enum      []string
	minimum   *int
	maximum   *int
	minLength *int
}

func intPtr(v int) *int { return &v }

// workloadConstraints mirrors bench.Workload.Validate.
var workloadConstraints = map[string]constraint{
	"name":         {minLength: intPtr(1)},
	"policy":       {enum: []string{bench.PolicyFixed, bench.PolicyGrow, bench.PolicyEvict}},
	"phases":       {required: true},
	"capacity":     {minimum: intPtr(1)},
	"record_bytes": {minimum: intPtr(8), maximum: intPtr(64)},
	"shards":       {minimum: intPtr(1)},
	"key_space":    {minimum: intPtr(1)},
}

// phaseConstraints mirrors bench.Phase.validate.
var phaseConstraints = map[string]constraint{
	"kind": {required: true, enum: []string{
		bench.PhaseInsert, bench.PhaseFind, bench.PhaseDelete,
		bench.PhaseMixed, bench.PhaseScan, bench.PhaseHibernate,
	}},
	"ops":          {required: true, minimum: intPtr(1)},
	"distribution": {enum: []string{bench.DistSequential, bench.DistUniform, bench.DistZipf}},
}

func main() {
	outputPath := flag.String("o", "internal/bench/workload-schema.json", "Output path for the workload schema")
	flag.Parse()

	schema := objectSchema(reflect.TypeOf(bench.Workload{}), workloadConstraints)
	schema.SchemaURI = "http://json-schema.org/draft-07/schema#"
	schema.Title = "slabbench workload"
	schema.Description = "Workload definition for the slabbench driver"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	data = append(data, '\n')

	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated workload schema at %s\n", *outputPath)
}

// objectSchema reflects one struct into a closed JSON object schema,
// walking fields in declaration order.
func objectSchema(t reflect.Type, constraints map[string]constraint) *Schema {
	closed := false
	schema := &Schema{Type: "object", AdditionalProperties: &closed, Properties: &properties{}}

	for i := range t.NumField() {
		field := t.Field(i)

		jsonName := strings.Split(field.Tag.Get("json"), ",")[0]
		if jsonName == "" || jsonName == "-" {
			continue
		}

		rules := constraints[jsonName]
		fieldSchema := schemaForType(field.Type, jsonName)

		fieldSchema.Enum = rules.enum
		if rules.enum != nil {
			// An enum constrains the value set on its own.
			fieldSchema.Type = ""
		}

		fieldSchema.Minimum = rules.minimum
		fieldSchema.Maximum = rules.maximum
		fieldSchema.MinLength = rules.minLength

		if rules.required {
			schema.Required = append(schema.Required, jsonName)
		}

		schema.Properties.add(jsonName, fieldSchema)
	}

	return schema
}

// schemaForType maps one reflected field type to its schema.
func schemaForType(t reflect.Type, jsonName string) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}

	case reflect.Int, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}

	case reflect.Bool:
		return &Schema{Type: "boolean"}

	case reflect.Slice:
		elem := t.Elem()
		if elem.Kind() != reflect.Struct {
			return &Schema{Type: "array", Items: schemaForType(elem, jsonName)}
		}

		// The only nested struct slice is the phase list.
		return &Schema{
			Type:     "array",
			MinItems: intPtr(1),
			Items:    objectSchema(elem, phaseConstraints),
		}

	default:
		fmt.Fprintf(os.Stderr, "Error: field %s has unsupported kind %s\n", jsonName, t.Kind())
		os.Exit(1)

		return nil
	}
}
