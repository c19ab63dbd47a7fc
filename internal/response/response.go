// Package response writes the JSON envelope shared by every endpoint:
// {"success": true, "data": ..., "total": n} or {"success": false, "error": "..."}.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
)

type Envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Total   *int              `json:"total,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// List writes a collection together with its size.
func List[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	total := len(items)
	c.JSON(http.StatusOK, Envelope{Success: true, Data: items, Total: &total})
}

// Error classifies err and writes the matching status. Internal errors are
// logged and their message withheld.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	env := Envelope{Success: false}

	var appErr *apperr.Error
	switch {
	case kind == apperr.KindInternal:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		env.Error = "internal server error"
	case errors.As(err, &appErr):
		env.Error = appErr.Message
		env.Fields = appErr.Fields
	default:
		env.Error = err.Error()
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(kind.HTTPStatus(), env)
}

// BindError reports a request body or query that failed to bind. Validator
// errors are turned into per-field messages.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Success: false, Error: "invalid request: " + err.Error()})
		return
	}

	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fieldName(fe)
		fields[name] = fieldMessage(fe)
		names = append(names, name)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		Success: false,
		Error:   "validation failed: " + strings.Join(names, ", "),
		Fields:  fields,
	})
}

// fieldName strips the top-level struct name from the namespace, e.g.
// CreateProjectRequest.Location.Country -> location.country.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return toSnake(ns)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
