package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	instance     *validator.Validate
	instanceOnce sync.Once
)

// FieldError is one failed constraint, named by the field's wire name.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

// Reason returns a short human-readable description of the failure.
func (e FieldError) Reason() string {
	switch e.Tag {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param
	case "max", "lte":
		return "must be at most " + e.Param
	case "gt":
		return "must be greater than " + e.Param
	case "lt":
		return "must be less than " + e.Param
	case "latitude":
		return "must be a valid latitude"
	case "longitude":
		return "must be a valid longitude"
	case "oneof":
		return "must be one of: " + e.Param
	default:
		return fmt.Sprintf("failed %q validation", e.Tag)
	}
}

// Validator returns the shared validator instance.
// Field names in errors come from the json tag when present.
func Validator() *validator.Validate {
	instanceOnce.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			default:
				return name
			}
		})
	})
	return instance
}

// Struct validates s and returns the failed fields in declaration order.
// A nil result means s is valid.
func Struct(s any) []FieldError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Tag: "invalid", Param: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
