package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sahilchouksey/fitcamp-api/model"
)

// Validator checks request bodies against their `validate` tags.
// Errors are keyed by the field's json name so clients can match them to their payload.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the activity_type tag registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("activity_type", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || model.ActivityType(value).Valid()
	})
	return &Validator{validate: v}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatValidationErrors maps each failing field to a readable message
func FormatValidationErrors(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fields
	}

	for _, e := range validationErrs {
		name := e.Field()
		var msg string
		switch e.Tag() {
		case "required":
			msg = "is required"
		case "min":
			msg = "must be at least " + e.Param() + lengthUnit(e)
		case "max":
			msg = "must be at most " + e.Param() + lengthUnit(e)
		case "gte":
			msg = "must be " + e.Param() + " or more"
		case "lte":
			msg = "must be " + e.Param() + " or less"
		case "activity_type":
			msg = "must be one of " + activityTypeList()
		default:
			msg = fmt.Sprintf("failed the %s check", e.Tag())
		}
		fields[name] = name + " " + msg
	}
	return fields
}

func lengthUnit(e validator.FieldError) string {
	if e.Kind() == reflect.String {
		return " characters"
	}
	return ""
}

func activityTypeList() string {
	names := make([]string, len(model.ActivityTypes))
	for i, t := range model.ActivityTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// SanitizeString drops NUL bytes and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
