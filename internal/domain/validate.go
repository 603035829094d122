package domain

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// SessionRequest is the input of a new interview attempt.
type SessionRequest struct {
	UserName string `json:"user_name" validate:"required,max=64"`
	Position string `json:"position" validate:"required,max=128"`
}

// NewSessionRequest trims both fields and validates them.
func NewSessionRequest(userName, position string) (SessionRequest, error) {
	req := SessionRequest{
		UserName: strings.TrimSpace(userName),
		Position: strings.TrimSpace(position),
	}
	if err := Validate(req); err != nil {
		return SessionRequest{}, err
	}
	return req, nil
}

// Credentials are used by login and register.
type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"max=128"`
}

// Validate runs struct tag validation and reports the first failing field
// as a *ValidationError.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}
