package service

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jmgilman/xcmd/internal/platform"
)

// DefaultTimeoutSeconds is used when a request does not set a timeout.
const DefaultTimeoutSeconds = 30

// MaxTimeoutSeconds is the largest timeout that still fits a time.Duration.
// It matches the lte bound on Request.Timeout.
const MaxTimeoutSeconds = math.MaxInt64 / 1_000_000_000

// ErrInvalidRequest is wrapped by every *ValidationError.
var ErrInvalidRequest = errors.New("invalid request")

// Request is a logical command to translate and execute.
type Request struct {
	Command          string `json:"command" yaml:"command" validate:"notblank"`
	Arguments        string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	WorkingDirectory string `json:"workingDirectory,omitempty" yaml:"workingDirectory,omitempty"`
	Timeout          int    `json:"timeout" yaml:"timeout" validate:"gt=0,lte=9223372036"` // seconds
	OperatingSystem  string `json:"operatingSystem" yaml:"operatingSystem" validate:"platform"`
}

// NewRequest returns a Request with the default timeout and platform.
func NewRequest(command, arguments string) Request {
	return Request{
		Command:         command,
		Arguments:       arguments,
		Timeout:         DefaultTimeoutSeconds,
		OperatingSystem: string(platform.Auto),
	}
}

// ValidationError lists the fields of a Request that failed validation,
// keyed by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidRequest, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	//nolint:errcheck // only fails for an empty tag or nil func
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	//nolint:errcheck // only fails for an empty tag or nil func
	v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		_, err := platform.Parse(fl.Field().String())
		return err == nil
	})

	return v
}

// Validate checks r and returns a *ValidationError describing every invalid
// field.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = reason(fe)
	}
	return &ValidationError{Fields: fields}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return "must not be blank"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "platform":
		return "must be one of " + strings.Join(platform.Names(), ", ")
	}
	return "failed " + fe.Tag() + " validation"
}
