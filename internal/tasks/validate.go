package tasks

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	ierrors "tenant-task-manager/internal/errors"
)

// Validator проверяет форму входящих DTO по тегам `validate:`.
type Validator struct {
	v *validator.Validate
}

// NewValidator создаёт Validator. В сообщениях поля называются так же,
// как в JSON.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Struct проверяет s и возвращает EInvalid с сообщением вида
// "Field: title -> title must be between 3 and 50 characters".
func (vl *Validator) Struct(s any) error {
	err := vl.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ierrors.Invalid("tasks.Validate", "Invalid input")
	}

	typ := reflect.TypeOf(s)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("Field: %s -> %s", fe.Field(), describe(typ, fe)))
	}
	return ierrors.Invalid("tasks.Validate", strings.Join(msgs, ", "))
}

func describe(typ reflect.Type, fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " cannot be null"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		min, max := lengthBounds(typ, fe.StructField())
		switch {
		case min != "" && max != "":
			return fmt.Sprintf("%s must be between %s and %s characters", name, min, max)
		case max != "":
			return fmt.Sprintf("%s must be at most %s characters", name, max)
		default:
			return fmt.Sprintf("%s must be at least %s characters", name, min)
		}
	}
	return fmt.Sprintf("%s failed on %q", name, fe.Tag())
}

// lengthBounds достаёт min= и max= из тега поля.
func lengthBounds(typ reflect.Type, field string) (min, max string) {
	if typ.Kind() != reflect.Struct {
		return "", ""
	}
	f, ok := typ.FieldByName(field)
	if !ok {
		return "", ""
	}
	for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
		key, val, found := strings.Cut(rule, "=")
		if !found {
			continue
		}
		switch key {
		case "min":
			min = val
		case "max":
			max = val
		}
	}
	return min, max
}
