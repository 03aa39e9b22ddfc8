// Package core provides the transform-then-validate pipeline for loan ingestion.
// This package has no I/O dependencies and can be used by any frontend.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType represents the expected data type for a canonical field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldNumber
	FieldDate
	FieldDatetime
)

var fieldTypeNames = map[FieldType]string{
	FieldString:   "string",
	FieldNumber:   "number",
	FieldDate:     "date",
	FieldDatetime: "datetime",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseFieldType maps a schema type name to a FieldType.
func ParseFieldType(name string) (FieldType, error) {
	for t, n := range fieldTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown field type %q", ErrInvalidSchema, name)
}

func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	ft, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// FieldSpec defines validation rules for a single canonical field.
type FieldSpec struct {
	Name          string    `json:"-" yaml:"-"`
	Type          FieldType `json:"type" yaml:"type"`
	Required      bool      `json:"required,omitempty" yaml:"required,omitempty"`
	AllowedValues []string  `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
}

// Schema is the ordered set of field specifications records are validated against.
//
// On disk a schema is an object {"fields": {"<name>": {...}, ...}}. Fields are
// evaluated in the order they are declared in the document.
type Schema struct {
	Fields []FieldSpec
}

var (
	// ErrInvalidSchema is returned for malformed schema documents.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrMissingClientID is returned when a client config carries no client_id.
	ErrMissingClientID = errors.New("client config missing client_id")
)

// Field returns the spec for a field name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Check reports structural problems: empty or duplicate names.
func (s Schema) Check() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: no fields declared", ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidSchema)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// UnmarshalJSON decodes {"fields": {...}} keeping the key order of "fields".
func (s *Schema) UnmarshalJSON(data []byte) error {
	var doc struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if len(doc.Fields) == 0 {
		return fmt.Errorf("%w: missing \"fields\"", ErrInvalidSchema)
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Fields))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: \"fields\" must be an object", ErrInvalidSchema)
	}

	var fields []FieldSpec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		name, _ := tok.(string)

		var spec FieldSpec
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidSchema, name, err)
		}
		spec.Name = name
		fields = append(fields, spec)
	}

	out := Schema{Fields: fields}
	if err := out.Check(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalJSON encodes the schema back to its document form, preserving order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"fields":{`)
	for i, f := range s.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes the YAML form of a schema keeping mapping order.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: schema must be a mapping", ErrInvalidSchema)
	}

	var fieldsNode *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "fields" {
			fieldsNode = node.Content[i+1]
			break
		}
	}
	if fieldsNode == nil {
		return fmt.Errorf("%w: missing \"fields\"", ErrInvalidSchema)
	}
	if fieldsNode.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: \"fields\" must be a mapping", ErrInvalidSchema)
	}

	fields := make([]FieldSpec, 0, len(fieldsNode.Content)/2)
	for i := 0; i+1 < len(fieldsNode.Content); i += 2 {
		name := fieldsNode.Content[i].Value
		var spec FieldSpec
		if err := fieldsNode.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidSchema, name, err)
		}
		spec.Name = name
		fields = append(fields, spec)
	}

	out := Schema{Fields: fields}
	if err := out.Check(); err != nil {
		return err
	}
	*s = out
	return nil
}

// Mapping maps source field names to canonical field names.
type Mapping map[string]string

// ClientConfig holds per-client conventions.
type ClientConfig struct {
	ClientID          string            `json:"client_id" yaml:"client_id"`
	StatusCodeMapping map[string]string `json:"status_code_mapping,omitempty" yaml:"status_code_mapping,omitempty"`
	DateFormats       []string          `json:"date_formats,omitempty" yaml:"date_formats,omitempty"`
	FileFormat        string            `json:"file_format,omitempty" yaml:"file_format,omitempty"`
	Delimiter         string            `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	Encoding          string            `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

// Reader defaults applied by WithDefaults.
const (
	DefaultFileFormat = "csv"
	DefaultDelimiter  = ","
	DefaultEncoding   = "utf-8"
)

// WithDefaults returns a copy with empty reader settings filled in.
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.FileFormat == "" {
		c.FileFormat = DefaultFileFormat
	}
	if c.Delimiter == "" {
		c.Delimiter = DefaultDelimiter
	}
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	return c
}

// Well-known canonical field names used outside the schema.
const (
	FieldLoanID             = "loan_id"
	FieldStatus             = "loan_status"
	FieldOpenDate           = "open_date"
	FieldLoanAmount         = "loan_amount"
	FieldClientID           = "client_id"
	FieldIngestionID        = "ingestion_id"
	FieldIngestionTimestamp = "ingestion_timestamp"
)
