// Package validate wraps go-playground/validator with readable error
// messages.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom tags must be registered
// from init functions, before the first call to Struct.
var v = validator.New(validator.WithRequiredStructEnabled())

// Register adds a custom validation tag. It panics on an invalid tag so that
// misconfiguration surfaces at package load.
func Register(tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %q: %v", tag, err))
	}
}

// Struct validates s using its validate tags. It returns a single error
// listing every failed field, or nil.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
