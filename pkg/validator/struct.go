package validator

import (
	"errors"
	"reflect"
	"strings"

	val "github.com/go-playground/validator/v10"
)

var validate *val.Validate

var messages = map[string]string{
	"required": "{field} is required",
	"gt":       "{field} must be greater than {param}",
	"gte":      "{field} must be greater than or equal to {param}",
	"lte":      "{field} must be less than or equal to {param}",
	"min":      "{field} must have at least {param} entries",
	"max":      "{field} exceeds the maximum of {param}",
	"oneof":    "{field} must be one of {param}",
	"unique":   "{field} must not contain duplicates",
	"lkphone":  "{field} must be a valid Sri Lankan mobile number",
}

func init() {
	validate = val.New(val.WithRequiredStructEnabled())

	// report json field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	err := validate.RegisterValidation("lkphone", func(fl val.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

// Struct validates a request struct against its `validate` tags and returns a
// human readable message for the first failing field.
func Struct(data any) error {
	if err := validate.Struct(data); err != nil {
		return errors.New(message(err))
	}
	return nil
}

func message(err error) string {
	var valErrors val.ValidationErrors

	if errors.As(err, &valErrors) {
		for _, valErr := range valErrors {
			msg := messages[valErr.Tag()]
			if msg != "" {
				msg = strings.ReplaceAll(msg, "{field}", valErr.Namespace())
				msg = strings.ReplaceAll(msg, "{param}", valErr.Param())
				return msg
			}
		}

		return valErrors.Error()
	}

	return err.Error()
}
