package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Fields checks the validate tags on s. It returns nil when s is valid,
// and otherwise a message list per json field name.
func Fields(s any) (map[string][]string, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], message(fe.Field(), fe.Tag(), fe.Param()))
	}
	return fields, nil
}

// Var checks a single value against tag and returns its messages, if any.
func Var(field string, value any, tag string) []string {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{fmt.Sprintf("The %s field is invalid.", label(field))}
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, message(field, fe.Tag(), fe.Param()))
	}
	return messages
}

func message(field, tag, param string) string {
	name := label(field)
	switch tag {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", name, param)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", name, param)
	case "eqfield":
		return "The password confirmation does not match."
	case "numeric", "len":
		return fmt.Sprintf("The %s field must be %s digits.", name, param)
	}
	return fmt.Sprintf("The %s field is invalid.", name)
}

func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
