package schema

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/google/uuid"

	"smarthome-cloud/internal/resource"
)

// FieldType identifies the JSON type a field must decode to.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// Format names a well-known string format.
type Format string

const (
	FormatEmail Format = "email"
	FormatUUID  Format = "uuid"
	FormatURL   Format = "url"
)

// Field is one declarative constraint in a schema.
// Min and Max bound numeric values, or the length of strings.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Enum     []string
	Min      *float64
	Max      *float64
	Format   Format
	Fields   []Field // nested constraints for object fields
	Elem     *Field  // element constraint for array fields
	Default  any
}

// Schema is a declarative constraint set evaluated against a document.
// Unknown keys are rejected, matching the strictness of the persisted
// document shape.
type Schema struct {
	Name   string
	Fields []Field
}

// Validate checks a document against the schema. Violations are wrapped
// in resource.ErrValidation.
func (s Schema) Validate(doc map[string]any) error {
	return validateObject(s.Name, s.Fields, doc)
}

// ApplyDefaults fills absent fields that declare a default value.
func (s Schema) ApplyDefaults(doc map[string]any) {
	if doc == nil {
		return
	}
	for _, field := range s.Fields {
		if field.Default == nil {
			continue
		}
		if value, ok := doc[field.Name]; !ok || value == nil {
			doc[field.Name] = field.Default
		}
	}
}

func validateObject(path string, fields []Field, doc map[string]any) error {
	known := make(map[string]Field, len(fields))
	for _, field := range fields {
		known[field.Name] = field
	}
	for key := range doc {
		if _, ok := known[key]; !ok {
			return violation(path, key, "is not allowed")
		}
	}
	for _, field := range fields {
		value, ok := doc[field.Name]
		if !ok || value == nil {
			if field.Required {
				return violation(path, field.Name, "is required")
			}
			continue
		}
		if err := checkValue(path, field, value); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(path string, field Field, value any) error {
	switch field.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return violation(path, field.Name, "must be a string")
		}
		if len(field.Enum) > 0 && !enumContains(field.Enum, str) {
			return violation(path, field.Name, fmt.Sprintf("must be one of %v", field.Enum))
		}
		if field.Min != nil && float64(len(str)) < *field.Min {
			return violation(path, field.Name, fmt.Sprintf("must be at least %d characters", int(*field.Min)))
		}
		if field.Max != nil && float64(len(str)) > *field.Max {
			return violation(path, field.Name, fmt.Sprintf("must be at most %d characters", int(*field.Max)))
		}
		return checkFormat(path, field, str)
	case TypeNumber:
		num, ok := toFloat(value)
		if !ok {
			return violation(path, field.Name, "must be a number")
		}
		if field.Min != nil && num < *field.Min {
			return violation(path, field.Name, fmt.Sprintf("must be >= %v", *field.Min))
		}
		if field.Max != nil && num > *field.Max {
			return violation(path, field.Name, fmt.Sprintf("must be <= %v", *field.Max))
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return violation(path, field.Name, "must be a boolean")
		}
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return violation(path, field.Name, "must be an object")
		}
		if len(field.Fields) > 0 {
			return validateObject(path+"."+field.Name, field.Fields, obj)
		}
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return violation(path, field.Name, "must be an array")
		}
		if field.Elem != nil {
			for i, item := range items {
				elem := *field.Elem
				elem.Name = fmt.Sprintf("%s[%d]", field.Name, i)
				if err := checkValue(path, elem, item); err != nil {
					return err
				}
			}
		}
	default:
		return violation(path, field.Name, "has no declared type")
	}
	return nil
}

func checkFormat(path string, field Field, value string) error {
	switch field.Format {
	case "":
		return nil
	case FormatEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return violation(path, field.Name, "must be a valid email")
		}
	case FormatUUID:
		if _, err := uuid.Parse(value); err != nil {
			return violation(path, field.Name, "must be a valid uuid")
		}
	case FormatURL:
		if _, err := url.ParseRequestURI(value); err != nil {
			return violation(path, field.Name, "must be a valid url")
		}
	default:
		return violation(path, field.Name, "has an unknown format")
	}
	return nil
}

func enumContains(enum []string, value string) bool {
	for _, candidate := range enum {
		if candidate == value {
			return true
		}
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch num := value.(type) {
	case float64:
		return num, true
	case float32:
		return float64(num), true
	case int:
		return float64(num), true
	case int64:
		return float64(num), true
	case json.Number:
		parsed, err := num.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}

func violation(path, field, msg string) error {
	return fmt.Errorf("%s: %q %s: %w", path, field, msg, resource.ErrValidation)
}

// FloatPtr is a convenience for declaring Min/Max bounds.
func FloatPtr(value float64) *float64 { return &value }
