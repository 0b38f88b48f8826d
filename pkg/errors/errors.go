// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStorePersonNotFound     Code = "store.person.get.not_found"
	CodeStorePersonConflict     Code = "store.person.create.conflict"
	CodeStoreSectionInvalid     Code = "store.section.insert.invalid_input"
	CodeStoreMatchInvalid       Code = "store.section.match.invalid_input"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeEmbeddingInputInvalid     Code = "embedding.input.invalid"
	CodeEmbeddingConfigInvalid    Code = "embedding.config.invalid"
	CodeEmbeddingResponseInvalid  Code = "embedding.response.invalid"
	CodeEmbeddingUpstreamFailure  Code = "embedding.upstream.failure"
	CodeEmbeddingProviderNotFound Code = "embedding.provider.not_found"
	CodeEmbeddingRateLimitTimeout Code = "embedding.ratelimit.timeout"

	CodeIngestPayloadInvalid Code = "ingest.payload.invalid"
	CodeIngestSectionFailure Code = "ingest.section.failure"

	CodeMatchQueryInvalid Code = "match.query.invalid"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldUsername(value string) Attr {
	return Field("username", value)
}

func FieldPersonID(value string) Attr {
	return Field("person_id", value)
}

func FieldSection(value string) Attr {
	return Field("section", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldStatusCode(value int) Attr {
	return Field("status_code", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsProviderError reports whether err originated in an embedding provider call.
func IsProviderError(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "embedding.") && !IsInvalidInput(err) && !IsNotFound(err)
}

// IsStoreError reports whether err originated in the person store.
func IsStoreError(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "store.")
}

// HTTPStatus maps an error to its response status. Not found is 404, conflict
// is 409, and every other failure is reported as a client error.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
