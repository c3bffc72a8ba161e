package shopapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Machine-readable codes the server attaches to rejections.
const (
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeListItemLimit       = "LIST_ITEM_LIMIT"
	// CodeUnsuccessful marks a 2xx response whose envelope reported success=false.
	CodeUnsuccessful = "UNSUCCESSFUL"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Method  string
	Path    string
	// Data holds the decoded error body, if it was a JSON object.
	Data map[string]any
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("api %s %s returned status %d (%s): %s", e.Method, e.Path, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("api %s %s returned status %d: %s", e.Method, e.Path, e.Status, msg)
}

// Flag reports whether the error body carried name=true, e.g. "needs_phone".
func (e *APIError) Flag(name string) bool {
	if e == nil || e.Data == nil {
		return false
	}
	v, ok := e.Data[name].(bool)
	return ok && v
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// CodeOf returns the machine code carried by err, if any.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsClientError reports a 4xx rejection.
func IsClientError(err error) bool {
	status := StatusOf(err)
	return status >= 400 && status < 500
}

// IsServerError reports a 5xx failure.
func IsServerError(err error) bool {
	return StatusOf(err) >= 500
}

// IsTransient reports failures worth retrying later. Any error that is not an
// APIError is treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}

// parseError consumes and closes the body of a failed response.
func parseError(resp *http.Response, method, path string) *APIError {
	defer func() { _ = resp.Body.Close() }()

	apiErr := &APIError{
		Status: resp.StatusCode,
		Method: method,
		Path:   path,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		apiErr.Message = fmt.Sprintf("read error body: %v", err)
		return apiErr
	}

	var data map[string]any
	if json.Unmarshal(body, &data) != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Data = data
	apiErr.Code = stringField(data, "code")
	apiErr.Message = stringField(data, "message")
	if apiErr.Message == "" {
		apiErr.Message = stringField(data, "error")
	}
	return apiErr
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func unsuccessful(method, path, message string) *APIError {
	if message == "" {
		message = "request reported failure"
	}
	return &APIError{
		Status:  http.StatusOK,
		Code:    CodeUnsuccessful,
		Message: message,
		Method:  method,
		Path:    apiPrefix + path,
	}
}
