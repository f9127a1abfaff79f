// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package apiresponse

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

// StatusError is an error that knows which HTTP status and body it should be
// reported with at the handler boundary.
type StatusError interface {
	error
	StatusCode() int
	Body() string
}

// ValidationError indicates missing or malformed caller input.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e ValidationError) Body() string    { return e.Message }

// ConfigurationError indicates a required deployment binding is absent.
// Handlers disagree on the status used for this, so it is carried explicitly.
type ConfigurationError struct {
	Message string
	Status  int
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e ConfigurationError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

func (e ConfigurationError) Body() string { return e.Message }

// UpstreamError indicates an external service call failed or returned a
// response without the fields the handler needs.
type UpstreamError struct {
	Message string
	Status  int
	Err     error
}

func (e UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

func (e UpstreamError) Unwrap() error { return e.Err }

func (e UpstreamError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

func (e UpstreamError) Body() string { return e.Message }

// NewValidation creates a ValidationError.
func NewValidation(msg string) error {
	return ValidationError{Message: msg}
}

// NewConfiguration creates a ConfigurationError reported with status.
func NewConfiguration(status int, msg string) error {
	return ConfigurationError{Message: msg, Status: status}
}

// NewUpstream wraps a failed external call. The reported message is the
// service's own error message when one is available.
func NewUpstream(status int, err error) error {
	return UpstreamError{Message: UpstreamMessage(err), Status: status, Err: err}
}

// NewUpstreamShape reports a successful call whose response lacked required fields.
func NewUpstreamShape(status int, msg string) error {
	return UpstreamError{Message: msg, Status: status}
}

// UpstreamMessage extracts the AWS API error message from err, falling back
// to err.Error().
func UpstreamMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	return err.Error()
}

// AsStatusError finds the first StatusError in err's chain.
func AsStatusError(err error) (StatusError, bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
