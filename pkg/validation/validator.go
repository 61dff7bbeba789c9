// Package validation provides the shared go-playground validator instance,
// config-schema validation for step types and structural checks for the
// entity graph.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator instance with stepflow-specific rules
var Validate *validator.Validate

var (
	stepTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
	entityIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)
)

func init() {
	Validate = validator.New()

	Validate.RegisterValidation("step_type", validateStepType)
	Validate.RegisterValidation("entity_id", validateEntityID)

	// Report JSON field names instead of Go field names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Struct validates a struct's `validate` tags
func Struct(s interface{}) error {
	if err := Validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// Map validates data against per-key rules written in validator tag syntax,
// e.g. {"prompt": "required,min=1"}. Nested rule maps validate nested data.
func Map(data map[string]interface{}, rules map[string]interface{}) error {
	if len(rules) == 0 {
		return nil
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	failures := Validate.ValidateMap(data, rules)
	if len(failures) == 0 {
		return nil
	}
	var out ValidationErrors
	flattenMapFailures("", failures, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func flattenMapFailures(prefix string, failures map[string]interface{}, out *ValidationErrors) {
	for key, f := range failures {
		field := key
		if prefix != "" {
			field = prefix + "." + key
		}
		switch v := f.(type) {
		case map[string]interface{}:
			flattenMapFailures(field, v, out)
		case validator.ValidationErrors:
			for _, fe := range v {
				*out = append(*out, ValidationError{Field: field, Value: fe.Value(), Message: getErrorMessage(fe)})
			}
		case error:
			*out = append(*out, ValidationError{Field: field, Message: v.Error()})
		default:
			*out = append(*out, ValidationError{Field: field, Message: fmt.Sprint(v)})
		}
	}
}

// formatValidationErrors converts validator errors to our custom format
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// getErrorMessage returns a human-readable error message
func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "step_type":
		return "must be a lowercase step type name (letters, digits, underscore, hyphen)"
	case "entity_id":
		return "must be a valid identifier"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateStepType(fl validator.FieldLevel) bool {
	return stepTypePattern.MatchString(fl.Field().String())
}

func validateEntityID(fl validator.FieldLevel) bool {
	return entityIDPattern.MatchString(fl.Field().String())
}
