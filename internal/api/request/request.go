// Package request decodes and validates JSON request bodies.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/loyaltywallet/walletsync/internal/api/models"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 64 << 10

// v is shared by all requests; registrations happen once in init.
var v = validator.New(validator.WithRequiredStructEnabled())

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError reports a body that could not be decoded or failed its
// validate tags.
type ValidationError struct {
	Detail string
	Fields []models.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Detail
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return e.Detail + ": " + strings.Join(parts, "; ")
}

// Decode reads a JSON body into dst and validates it. Unknown fields are
// ignored; wallet clients add keys across OS versions.
func Decode(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			// An empty body still has to satisfy the validate tags.
		case errors.As(err, &maxErr):
			return &ValidationError{Detail: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		default:
			return &ValidationError{Detail: "request body is not valid JSON"}
		}
	}
	return Validate(dst)
}

// Validate checks dst against its validate tags.
func Validate(dst any) error {
	err := v.Struct(dst)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	fields := make([]models.FieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, models.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
			Code:    fe.Tag(),
		})
	}
	return &ValidationError{Detail: "request validation failed", Fields: fields}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
