package store

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator. Field names in its errors are the JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks v against its validate tags and reports the first violation as an
// InvalidInput error.
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !lterrors.As(err, &verrs) || len(verrs) == 0 {
		return lterrors.NewInvalidInputWithCause("", "invalid input", err)
	}

	fe := verrs[0]
	return lterrors.NewInvalidInputWithCause(fe.Field(), describe(fe), err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "alphanum":
		return "must contain only letters and digits"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// RequireID rejects a blank identifier argument.
func RequireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return lterrors.NewInvalidInput(field, "is required")
	}
	return nil
}

// IsStage reports whether id names one of DefaultStages.
func IsStage(id int) bool {
	for _, s := range DefaultStages {
		if s.ID == id {
			return true
		}
	}
	return false
}
