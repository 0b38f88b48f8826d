// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

func init() {
	huma.NewError = newAPIError
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// apiError is the huma error model. It renders as {"error": "..."}.
type apiError struct {
	status  int
	Message string `json:"error" doc:"Error message"`
}

func (e *apiError) Error() string  { return e.Message }
func (e *apiError) GetStatus() int { return e.status }

// newAPIError replaces huma's RFC 7807 errors. Request validation failures
// are reported as 400 like every other client error.
func newAPIError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}
	if len(details) > 0 {
		msg = msg + ": " + strings.Join(details, "; ")
	}
	return &apiError{status: status, Message: msg}
}

// toHTTPError renders a domain error with the status from mmerr.HTTPStatus.
func toHTTPError(err error) huma.StatusError {
	return &apiError{status: mmerr.HTTPStatus(err), Message: err.Error()}
}
