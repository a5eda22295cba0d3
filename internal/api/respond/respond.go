// Package respond writes the JSON envelopes shared by every API endpoint.
package respond

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ErrorBody struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Timestamp  time.Time   `json:"timestamp"`
	Path       string      `json:"path"`
	Method     string      `json:"method"`
	Details    interface{} `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func OK(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, message, data)
}

func Created(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusCreated, message, data)
}

func Accepted(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusAccepted, message, data)
}

func write(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// Error aborts the request with the standard error envelope.
func Error(c *gin.Context, status int, message string) {
	ErrorWithDetails(c, status, message, nil)
}

func ErrorWithDetails(c *gin.Context, status int, message string, details interface{}) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": ErrorBody{
			Message:    message,
			StatusCode: status,
			Timestamp:  time.Now().UTC(),
			Path:       c.Request.URL.Path,
			Method:     c.Request.Method,
			Details:    details,
		},
	})
}

// BindError reports a failed ShouldBind call as 400 with per-field details.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ErrorWithDetails(c, http.StatusBadRequest, "Invalid request body", []FieldError{{
			Message: err.Error(),
			Code:    "invalid_json",
		}})
		return
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	ErrorWithDetails(c, http.StatusBadRequest, "Validation failed", details)
}

// fieldPath drops the root struct name from a validator namespace and
// lower-cases the first letter of each segment.
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "uuid":
		return "must be a UUID"
	}
	return "is invalid (" + fe.Tag() + ")"
}
