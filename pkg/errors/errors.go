// Package errors provides coded, structured errors for the retrieval engine.
//
// Every failure that crosses a package boundary carries a Code whose first
// segment names its kind: "config" (ConfigurationError), "backend"
// (BackendUnavailableError), "input" (MalformedInputError). Not-found codes
// end in "not_found" regardless of their prefix.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigInvalidValue      Code = "config.validate.invalid_value"
	CodeConfigMissingCredential Code = "config.credentials.missing"
	CodeConfigDimensionMismatch Code = "config.embedding.dimension_mismatch"
	CodeConfigLoadFailure       Code = "config.load.failure"

	CodeBackendUnavailable     Code = "backend.request.unavailable"
	CodeBackendTimeout         Code = "backend.request.timeout"
	CodeBackendResponseInvalid Code = "backend.response.invalid"

	CodeStoreSchemaNotFound Code = "store.schema.not_found"
	CodeStoreIndexNotFound  Code = "store.index.not_found"

	CodeInputEmptyQuery    Code = "input.query.malformed"
	CodeInputEmptyDocument Code = "input.document.malformed"
	CodeInputUnsupported   Code = "input.file.unsupported"

	CodeEmbeddingFailure Code = "backend.embedding.unavailable"
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

func FieldStore(value string) Attr {
	return Field("store", value)
}

func FieldOperation(value string) Attr {
	return Field("operation", value)
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

// With adds structured fields to an existing error chain, keeping its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	if code == "" {
		code = CodeBackendUnavailable
	}
	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// Transport classifies a failed network call: deadline and net timeouts
// become CodeBackendTimeout, everything else CodeBackendUnavailable.
// Errors that already carry a code are returned unchanged.
func Transport(err error, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	if CodeOf(err) != "" {
		return err
	}
	code := CodeBackendUnavailable
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		code = CodeBackendTimeout
	}
	return Wrap(err, code, msg, fields...)
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

func IsConfiguration(err error) bool {
	return kind(CodeOf(err)) == "config"
}

// IsBackendUnavailable reports connection failures, timeouts and
// non-success service responses.
func IsBackendUnavailable(err error) bool {
	return kind(CodeOf(err)) == "backend"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsMalformedInput(err error) bool {
	return kind(CodeOf(err)) == "input"
}

func HTTPStatus(err error) int {
	switch {
	case IsMalformedInput(err), IsConfiguration(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsBackendUnavailable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
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

func kind(code Code) string {
	raw := string(code)
	if idx := strings.Index(raw, "."); idx > 0 {
		return raw[:idx]
	}
	return raw
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
