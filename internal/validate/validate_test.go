package validate

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Count int    `validate:"min=10"`
	Code  string `validate:"omitempty,upper3"`
}

func init() {
	Register("upper3", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == 3 && strings.ToUpper(s) == s
	})
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "x", Count: 10, Code: "ABC"}))
}

func TestStructListsEveryField(t *testing.T) {
	err := Struct(sample{Count: 3, Code: "abc"})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "field 'sample.Name' failed 'required'")
	assert.Contains(t, msg, "field 'sample.Count' failed 'min'")
	assert.Contains(t, msg, "field 'sample.Code' failed 'upper3'")
}

func TestRegisterPanicsOnBadTag(t *testing.T) {
	assert.Panics(t, func() {
		Register("", func(validator.FieldLevel) bool { return true })
	})
}
