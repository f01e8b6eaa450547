package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
)

// Error bodies larger than this are truncated; a multi-megabyte error page
// is never worth keeping.
const maxErrorBodySize = 1 << 20

// DownstreamErrorResponse is the subset of httputil.ErrorResponse we read
// back from other WEB-NOVA services.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError turns a non-2xx response into an error. Structured
// bodies in the standard envelope keep their code and message; anything else
// becomes a plain error quoting the status and raw body. The body is
// consumed and closed either way.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream DownstreamErrorResponse
	if json.Unmarshal(bodyBytes, &downstream) != nil || downstream.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(bodyBytes))
	}
	return mapDownstreamError(resp.StatusCode, downstream.Error.Code, downstream.Error.Message, serviceName)
}

// mapDownstreamError rebuilds an AppError so errors.Is checks keep working
// across a service hop. Plain 5xx stays a plain error: the upstream already
// decided it was internal, and wrapping it as ours would be misleading.
func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := serviceName + ": " + message

	switch status {
	case http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(qualifiedMsg)
	case http.StatusForbidden:
		return apperrors.Forbidden(qualifiedMsg)
	case http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	}

	if status >= 500 {
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	}

	return &apperrors.AppError{
		Code:    code,
		Message: qualifiedMsg,
		Status:  status,
	}
}

// IsClientError reports whether status is a 4xx. The settlement saga uses
// this to skip compensation when the request itself was invalid.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
