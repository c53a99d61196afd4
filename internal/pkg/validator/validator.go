package validator

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate checks struct tags and returns field -> failed tag, or nil.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// FieldError carries per-field failures and unwraps to a package sentinel so
// callers can match it with errors.Is.
type FieldError struct {
	Sentinel error
	Fields   map[string]string
}

func (e *FieldError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return e.Sentinel.Error() + ": " + strings.Join(parts, ", ")
}

func (e *FieldError) Unwrap() error { return e.Sentinel }

// Check validates v and wraps any failure in a FieldError for sentinel.
func Check(v interface{}, sentinel error) error {
	if fields := Validate(v); fields != nil {
		return &FieldError{Sentinel: sentinel, Fields: fields}
	}
	return nil
}
