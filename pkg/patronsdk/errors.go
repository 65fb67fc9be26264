package patronsdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx answer from the auth service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("auth service error (%d %s): %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("auth service error (%d %s)", e.StatusCode, e.Code)
}

// MFARequiredError is returned by Login when the account has an active second
// factor. Complete the challenge with Client.CompleteMFA using MFAToken.
type MFARequiredError struct {
	MFAToken string
}

func (e *MFARequiredError) Error() string {
	return "multi-factor authentication required"
}

// apiError drains the response body and builds an APIError from it. Bodies
// that are not the service's error shape still yield a usable error.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var body struct {
		Code        string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		return &APIError{StatusCode: resp.StatusCode, Code: "unexpected_response"}
	}
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        body.Code,
		Description: body.Description,
	}
}
