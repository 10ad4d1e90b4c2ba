package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/todoflow/pkg/api"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4096

// quotaCodes are error codes that report exhausted quota even when the
// backend answers with a status other than 429.
var quotaCodes = []string{"insufficient_quota", "resource_exhausted", "rate_limit_exceeded"}

// statusError converts a non-2xx backend response into an APIError.
// Quota exhaustion, by status or by error code, becomes too_many_requests
// so the engine can switch models.
func statusError(resp *http.Response) *api.APIError {
	message, code := readBackendError(resp.Body)
	if message == "" {
		message = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests || isQuotaCode(code) {
		return api.NewTooManyRequestsError(message)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return api.NewInvalidRequestError("", message)
	case resp.StatusCode == http.StatusNotFound:
		return api.NewNotFoundError(message)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return api.NewServerError("backend rejected the API key: " + message)
	default:
		return api.NewServerError(message)
	}
}

// networkError wraps a transport failure (refused connection, DNS, timeout).
func networkError(err error) *api.APIError {
	return api.NewServerError("backend connection error: " + err.Error())
}

// readBackendError extracts the message and code from an error body.
// Gemini's compatible endpoint wraps the object in a one-element array.
func readBackendError(body io.Reader) (message, code string) {
	if body == nil {
		return "", ""
	}
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return "", ""
	}

	var single ChatErrorResponse
	if err := json.Unmarshal(data, &single); err == nil && single.Error.Message != "" {
		return single.Error.Message, errorCode(single)
	}
	var wrapped []ChatErrorResponse
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped) > 0 {
		return wrapped[0].Error.Message, errorCode(wrapped[0])
	}
	return "", ""
}

// errorCode returns the code, falling back to the status or type field.
// Codes may be strings or numbers depending on the backend.
func errorCode(r ChatErrorResponse) string {
	if s, ok := r.Error.Code.(string); ok && s != "" {
		return s
	}
	if r.Error.Status != "" {
		return r.Error.Status
	}
	return r.Error.Type
}

func isQuotaCode(code string) bool {
	code = strings.ToLower(code)
	for _, q := range quotaCodes {
		if code == q {
			return true
		}
	}
	return false
}
