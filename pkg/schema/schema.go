package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Schema describes the structured value a grammar fragment must produce.
// A grammar generator compiles it into rules; Unmarshal turns the matched
// text back into the target type.
type Schema struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`

	target   reflect.Type // original struct type for unmarshaling
	validate *validator.Validate
}

// Option configures schema creation.
type Option func(*builder)

type builder struct {
	description string
}

// WithDescription sets the schema description.
func WithDescription(desc string) Option {
	return func(b *builder) {
		b.description = desc
	}
}

// New creates a Schema from a struct type using reflection. Field types,
// names and validation rules come from json, description and validate tags.
func New[T any](opts ...Option) (Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got %v", t)
	}

	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	fields, err := structFields(t)
	if err != nil {
		return Schema{}, err
	}

	return Schema{
		Name:        t.Name(),
		Description: b.description,
		Fields:      fields,
		target:      t,
		validate:    validator.New(),
	}, nil
}

// FromFile loads a schema from a JSON or YAML file. File-loaded schemas have
// no target type; Unmarshal produces a map.
func FromFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return Schema{}, fmt.Errorf("unsupported schema file format: %s", ext)
	}
}

// FromJSON creates a schema from JSON data.
func FromJSON(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	s.validate = validator.New()
	return s, nil
}

// FromYAML creates a schema from YAML data.
func FromYAML(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	s.validate = validator.New()
	return s, nil
}

// structFields extracts field definitions from a struct type.
func structFields(t reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		field := Field{
			Name:        jsonName(sf),
			Description: sf.Tag.Get("description"),
			Required:    !hasOmitempty(sf),
			Validators:  parseValidators(sf.Tag.Get("validate")),
		}

		fieldType := sf.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
			field.Required = false
		}

		typed, err := fieldFromType(fieldType)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		field.Type = typed.Type
		field.Items = typed.Items
		field.Properties = typed.Properties

		fields = append(fields, field)
	}

	return fields, nil
}

// fieldFromType maps a reflect.Type to a Field shape.
func fieldFromType(t reflect.Type) (Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	field := Field{}

	switch t.Kind() {
	case reflect.String:
		field.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		field.Type = TypeNumber
	case reflect.Bool:
		field.Type = TypeBoolean
	case reflect.Slice:
		field.Type = TypeArray
		item, err := fieldFromType(t.Elem())
		if err != nil {
			return Field{}, err
		}
		field.Items = &item
	case reflect.Struct:
		field.Type = TypeObject
		props, err := structFields(t)
		if err != nil {
			return Field{}, err
		}
		field.Properties = props
	case reflect.Map:
		field.Type = TypeObject
	default:
		return Field{}, fmt.Errorf("unsupported type: %v", t.Kind())
	}

	return field, nil
}

// jsonName returns the JSON field name from struct tags.
func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return sf.Name
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		return parts[0]
	}
	return sf.Name
}

// hasOmitempty checks if the json tag contains omitempty.
func hasOmitempty(sf reflect.StructField) bool {
	return strings.Contains(sf.Tag.Get("json"), "omitempty")
}

// parseValidators extracts validator tags.
func parseValidators(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// Unmarshal parses the matched JSON text into the target struct type, or
// into a map for file-loaded schemas.
func (s Schema) Unmarshal(data []byte) (any, error) {
	if s.target == nil {
		var result map[string]any
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal: %w", err)
		}
		return result, nil
	}

	v := reflect.New(s.target).Interface()
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}
	return v, nil
}

// Validate checks the data against the schema's validation rules.
func (s Schema) Validate(data any) []ValidationError {
	if s.validate == nil {
		return nil
	}

	if m, ok := data.(map[string]any); ok {
		return s.validateMap(m)
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	err := s.validate.Struct(data)
	if err == nil {
		return nil
	}

	var errors []ValidationError
	for _, e := range err.(validator.ValidationErrors) {
		errors = append(errors, ValidationError{
			Field:   e.Field(),
			Message: describeFailure(e),
			Value:   e.Value(),
		})
	}
	return errors
}

// validateMap validates a map against the schema fields.
func (s Schema) validateMap(data map[string]any) []ValidationError {
	var errors []ValidationError

	for _, field := range s.Fields {
		val, exists := data[field.Name]
		if field.Required && !exists {
			errors = append(errors, ValidationError{
				Field:   field.Name,
				Message: "required field is missing",
			})
			continue
		}
		if !exists {
			continue
		}

		if err := checkFieldType(field, val); err != nil {
			errors = append(errors, ValidationError{
				Field:   field.Name,
				Message: err.Error(),
				Value:   val,
			})
		}
	}

	return errors
}

// checkFieldType checks if a value matches the expected field type.
func checkFieldType(field Field, val any) error {
	if val == nil {
		if field.Required {
			return fmt.Errorf("value is null but field is required")
		}
		return nil
	}

	switch field.Type {
	case TypeString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
	case TypeInteger, TypeNumber:
		switch val.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float64:
			// JSON numbers decode as float64
		default:
			return fmt.Errorf("expected %s, got %T", field.Type, val)
		}
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", val)
		}
	case TypeArray:
		arr, ok := val.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", val)
		}
		if field.Items != nil {
			for i, item := range arr {
				if err := checkFieldType(*field.Items, item); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
		}
	case TypeObject:
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", val)
		}
	}

	return nil
}

// describeFailure creates a human-readable validation error message.
func describeFailure(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
