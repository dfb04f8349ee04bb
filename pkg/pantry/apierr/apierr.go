// Package apierr renders errors from the store layers as JSON responses and
// translates request binding failures into per-field messages.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mikepea/pantry/pkg/pantry/scope"
)

// Response is the error body returned by every endpoint.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// StatusError pairs an error with the HTTP status it should produce.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus tags err with an explicit HTTP status.
func WithStatus(status int, err error) error {
	return &StatusError{Status: status, Err: err}
}

var setupOnce sync.Once

// Setup makes validator report json field names. It is safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// Bind decodes the JSON body into req. On failure it writes a 400 response
// and returns false.
func Bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		Write(c, BindingError(err))
		return false
	}
	return true
}

// BindingError converts gin binding errors into a ValidationError-bearing error.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fieldErrors(verrs)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return scope.Invalid(typeErr.Field, fmt.Sprintf("Expected %s.", typeErr.Type))
	}

	return WithStatus(http.StatusBadRequest, err)
}

// FieldErrors is a set of ValidationErrors produced by a single binding.
type FieldErrors []*scope.ValidationError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func fieldErrors(verrs validator.ValidationErrors) FieldErrors {
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, &scope.ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}

// Status returns the HTTP status for err.
func Status(err error) int {
	var se *StatusError
	var ve *scope.ValidationError
	var fe FieldErrors

	switch {
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, scope.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, scope.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ve), errors.As(err, &fe):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Write renders err as a JSON response and aborts the request. Server errors
// are logged through the zap logger stored by the request middleware and are
// not echoed to the client.
func Write(c *gin.Context, err error) {
	status := Status(err)
	resp := Response{Error: err.Error()}

	var ve *scope.ValidationError
	var fe FieldErrors
	switch {
	case errors.As(err, &fe):
		resp.Error = "Invalid input"
		resp.Fields = make(map[string]string, len(fe))
		for _, e := range fe {
			resp.Fields[e.Field] = e.Message
		}
	case errors.As(err, &ve):
		resp.Error = "Invalid input"
		resp.Fields = map[string]string{ve.Field: ve.Message}
	case errors.Is(err, scope.ErrNotFound):
		resp.Error = "Not found"
	case errors.Is(err, scope.ErrUnauthorized):
		resp.Error = "Authentication required"
	}

	if status >= http.StatusInternalServerError {
		Logger(c).Errorw("request failed", "error", err, "path", c.FullPath())
		resp.Error = http.StatusText(status)
	}

	c.AbortWithStatusJSON(status, resp)
}

// ContextKeyLogger is where the request middleware stores the request logger.
const ContextKeyLogger = "logger"

// Logger returns the request-scoped logger, or a no-op logger.
func Logger(c *gin.Context) *zap.SugaredLogger {
	if v, ok := c.Get(ContextKeyLogger); ok {
		if lg, ok := v.(*zap.SugaredLogger); ok {
			return lg
		}
	}
	return zap.NewNop().Sugar()
}
