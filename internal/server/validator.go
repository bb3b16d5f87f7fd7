package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/workmatch/api/internal/marketplace"
)

// requestValidator plugs validator/v10 into echo and reports failures
// as marketplace validation errors named by their JSON field.
type requestValidator struct {
	v *validator.Validate
}

func newValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return marketplace.NewError(marketplace.ErrValidation, "Input data is not formed correctly")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("'%s': %s", fe.Field(), fieldMessage(fe)))
	}
	return marketplace.NewError(marketplace.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "lte", "max":
		if isString {
			return "length should be less or equal than " + fe.Param()
		}
		return "should be less or equal than " + fe.Param()
	case "gte", "min":
		if isString {
			return "length should be greater or equal than " + fe.Param()
		}
		return "should be greater or equal than " + fe.Param()
	case "gt":
		return "should be greater than " + fe.Param()
	case "oneof":
		return "should have value in: " + fe.Param()
	}
	return "incorrect value passed"
}
