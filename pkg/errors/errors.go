// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
//
// Codes are dotted paths of the form area.operation.reason. The final
// segment is the reason and drives classification (IsNotFound, HTTPStatus).
type Code string

const (
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreInvalidInput       Code = "store.invalid_input"
	CodeStoreRecordDecodeFailed Code = "store.record.decode.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderResponseInvalid Code = "provider.response.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderNotFound        Code = "provider.registry.not_found"
	CodeProviderAllUnavailable  Code = "provider.routing.all_unavailable"
	CodeProviderNoDefault       Code = "provider.routing.no_default"
	CodeProviderInvalidModelRef Code = "provider.routing.invalid_model_ref"

	CodeEmbedProviderUnsupported Code = "embed.provider.unsupported"
	CodeEmbedUpstreamFailure     Code = "embed.upstream.failure"
	CodeEmbedResponseInvalid     Code = "embed.response.invalid"

	CodeRetrieveInvalidInput Code = "retrieve.search.invalid_input"

	CodeMemoryInvalidInput             Code = "memory.append.invalid_input"
	CodeMemoryLaneClosed               Code = "memory.lane.closed"
	CodeMemoryLaneWorkerFailure        Code = "memory.lane.worker.failure"
	CodeMemoryCompactionUpstreamFailed Code = "memory.compaction.upstream.failure"

	CodeAnswerInvalidInput             Code = "answer.request.invalid_input"
	CodeAnswerGenerationUpstreamFailed Code = "answer.generation.upstream.failure"

	CodeIngestInvalidInput      Code = "ingest.request.invalid_input"
	CodeIngestBundleReadFailure Code = "ingest.bundle.read.failure"
	CodeIngestProgressNotFound  Code = "ingest.progress.not_found"

	CodeExtractParseInvalidFormat Code = "extract.parse.invalid_format"

	CodeWatchSetupFailure Code = "watch.setup.failure"

	CodeGuardRuleInvalid    Code = "guard.rule.invalid_value"
	CodeGuardContentBlocked Code = "guard.content.invalid_input"

	CodeSecretInvalidInput   Code = "secret.request.invalid_input"
	CodeSecretNotFound       Code = "secret.keyring.not_found"
	CodeSecretStoreFailure   Code = "secret.keyring.failure"
	CodeSecretIndexFailure   Code = "secret.index.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerNotImplemented  Code = "server.method.not_implemented"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
	CodeCLIEntityNotFound   Code = "cli.entity.not_found"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldDocID(value string) Attr {
	return Field("doc_id", value)
}

func FieldKind(value string) Attr {
	return Field("kind", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
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

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
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

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format" || r == "invalid_model_ref"
}

func IsUnsupported(err error) bool {
	return reason(CodeOf(err)) == "unsupported"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeServerNotImplemented):
		return http.StatusNotImplemented
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err), HasCode(err, CodeProviderAllUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
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
