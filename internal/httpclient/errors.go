package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pixel-storefront/internal/domain"
)

// APIError is a non-2xx answer from an upstream service.
type APIError struct {
	Upstream string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s returned %d (%s): %s", e.Upstream, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Upstream, e.Status, e.Message)
}

// Is maps upstream statuses onto the domain sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrCartNotFound:
		return strings.Contains(strings.ToLower(e.Message), "cart not found")
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case domain.ErrInvalidInput:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case domain.ErrUnavailable:
		return e.Status >= 500
	}
	return false
}

type errorBody struct {
	Error            json.RawMessage `json:"error"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	ErrorDescription string          `json:"error_description"`
	Code             json.RawMessage `json:"code"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and returns
// an *APIError. It understands {"error":{"code","message"}}, {"error":"..."},
// {"message":"..."} and the auth provider's {"msg"}/{"error_description"} shapes.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	apiErr := &APIError{Upstream: upstream, Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		apiErr.Message = fmt.Sprintf("failed to read body: %v", err)
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(raw, &body) != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	if len(body.Error) > 0 {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		var flat string
		switch {
		case json.Unmarshal(body.Error, &flat) == nil:
			if body.ErrorDescription != "" {
				apiErr.Code = flat
				flat = body.ErrorDescription
			}
			apiErr.Message = flat
		case json.Unmarshal(body.Error, &nested) == nil:
			apiErr.Code = nested.Code
			apiErr.Message = nested.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = firstNonEmpty(body.Message, body.ErrorDescription, body.Msg)
	}
	if apiErr.Code == "" && len(body.Code) > 0 {
		var code string
		if json.Unmarshal(body.Code, &code) == nil {
			apiErr.Code = code
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
