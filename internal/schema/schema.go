// Package schema describes tool input shapes and validates payloads against them.
package schema

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Type names follow JSON Schema.
const (
	TypeObject  = "object"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

// Schema is an explicit description of a value's expected shape.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// Field pairs a property name with its schema for use with Object.
type Field struct {
	Name     string
	Schema   *Schema
	Required bool
}

// Object builds an object schema from fields.
func Object(fields ...Field) *Schema {
	s := &Schema{Type: TypeObject, Properties: make(map[string]*Schema, len(fields))}
	for _, f := range fields {
		s.Properties[f.Name] = f.Schema
		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

// Required is shorthand for a required Field.
func Required(name string, s *Schema) Field { return Field{Name: name, Schema: s, Required: true} }

// Optional is shorthand for an optional Field.
func Optional(name string, s *Schema) Field { return Field{Name: name, Schema: s} }

func String(desc string) *Schema  { return &Schema{Type: TypeString, Description: desc} }
func Number(desc string) *Schema  { return &Schema{Type: TypeNumber, Description: desc} }
func Integer(desc string) *Schema { return &Schema{Type: TypeInteger, Description: desc} }
func Boolean(desc string) *Schema { return &Schema{Type: TypeBoolean, Description: desc} }

// Array builds an array schema with the given element schema.
func Array(desc string, items *Schema) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: items}
}

// Enum builds a string schema restricted to values.
func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: desc, Enum: values}
}

// Issue is a single validation failure at a dotted path.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError collects every issue found while validating a value.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Validate checks value against the schema. A nil schema accepts anything.
func (s *Schema) Validate(value any) error {
	if s == nil {
		return nil
	}
	var issues []Issue
	s.check("", value, &issues)
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// check accepts any value against a nil schema.
func (s *Schema) check(path string, value any, issues *[]Issue) {
	if s == nil {
		return
	}
	add := func(format string, args ...any) {
		*issues = append(*issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch s.Type {
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			if value == nil {
				obj = map[string]any{}
			} else {
				add("expected object, got %s", typeName(value))
				return
			}
		}
		for _, name := range s.Required {
			if v, ok := obj[name]; !ok || v == nil {
				*issues = append(*issues, Issue{Path: join(path, name), Message: "required"})
			}
		}
		for _, name := range sortedKeys(obj) {
			prop, ok := s.Properties[name]
			if !ok || obj[name] == nil {
				continue
			}
			prop.check(join(path, name), obj[name], issues)
		}
	case TypeString:
		str, ok := value.(string)
		if !ok {
			add("expected string, got %s", typeName(value))
			return
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			add("must be one of %s", strings.Join(s.Enum, ", "))
		}
	case TypeNumber:
		if _, ok := toFloat(value); !ok {
			add("expected number, got %s", typeName(value))
		}
	case TypeInteger:
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			add("expected integer, got %s", typeName(value))
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			add("expected boolean, got %s", typeName(value))
		}
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			add("expected array, got %s", typeName(value))
			return
		}
		if s.Items == nil {
			return
		}
		for i, el := range arr {
			s.Items.check(fmt.Sprintf("%s[%d]", path, i), el, issues)
		}
	case "":
	default:
		add("unknown schema type %q", s.Type)
	}
}

// JSONSchema returns the schema as a plain map suitable for provider tool
// declarations.
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return map[string]any{"type": TypeObject, "properties": map[string]any{}}
	}
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = slices.Clone(s.Enum)
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			out["required"] = slices.Clone(s.Required)
		}
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	return out
}

// Decode copies a validated payload into out, matching struct fields by their
// `json` tag. Numbers decoded from JSON arrive as float64 and are converted
// to the field's type.
func Decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}
	return nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
