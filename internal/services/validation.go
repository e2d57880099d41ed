package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgRequired      = "This field is required."
	msgInvalidEmail  = "Invalid email address."
	msgUsernameTaken = "Please use a different username."
	msgEmailTaken    = "Please use a different email address."
	msgPasswordLong  = "Field cannot be longer than 72 bytes."
)

// NewFormValidator reports field errors under the form tag name, so they
// line up with the input names in the rendered pages.
func NewFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateForm(v *validator.Validate, form any) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return msgInvalidEmail
	case "eqfield":
		return fmt.Sprintf("Field must be equal to %s.", strings.ToLower(fe.Param()))
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}

// passwordTooLong catches multi-byte passwords that pass the character
// limit but exceed what bcrypt can hash.
func passwordTooLong(err error) *ValidationError {
	if !errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil
	}
	verr := &ValidationError{}
	verr.Add("password", msgPasswordLong)
	return verr
}

func duplicateFieldError(field string) *ValidationError {
	verr := &ValidationError{}
	switch field {
	case "email":
		verr.Add("email", msgEmailTaken)
	default:
		verr.Add("username", msgUsernameTaken)
	}
	return verr
}
