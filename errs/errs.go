package errs

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error. The segment after
// the last dot is the reason used for classification.
type Code string

const (
	CodeInvalidInput        Code = "answer.question.invalid_input"
	CodeUnauthenticated     Code = "identity.token.unauthenticated"
	CodeNotFound            Code = "quota.account.not_found"
	CodeQuotaExceeded       Code = "quota.daily.exceeded"
	CodeUpstreamUnavailable Code = "upstream.call.unavailable"
	CodeStoreUnavailable    Code = "store.call.unavailable"
	CodeConfigInvalid       Code = "config.validate.invalid_value"
	CodeInternal            Code = "server.internal.failure"
)

// Upstream names used with FieldUpstream.
const (
	UpstreamEmbedding  = "embedding"
	UpstreamGeneration = "generation"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldUpstream(which string) Attr {
	return Field("upstream", which)
}

func FieldAccountID(id string) Attr {
	return Field("account_id", id)
}

func FieldRecordID(id string) Attr {
	return Field("record_id", id)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// Wrap attaches code and fields to err. oops resolves Code to the deepest
// coded error in the chain, so a cause that already carries a code keeps it.
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

// Upstream wraps an adapter failure as UpstreamUnavailable for the named upstream.
func Upstream(err error, which string, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, CodeUpstreamUnavailable, msg, FieldUpstream(which))
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
	if oopsErr.Code() == nil {
		return ""
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

// IsInvalidInput reports client input errors. Configuration errors are not
// client errors and map to 500.
func IsInvalidInput(err error) bool {
	return reason(CodeOf(err)) == "invalid_input"
}

func IsUnauthenticated(err error) bool {
	return reason(CodeOf(err)) == "unauthenticated"
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsQuotaExceeded(err error) bool {
	return HasCode(err, CodeQuotaExceeded)
}

func IsUpstreamUnavailable(err error) bool {
	return HasCode(err, CodeUpstreamUnavailable)
}

func IsStoreUnavailable(err error) bool {
	return HasCode(err, CodeStoreUnavailable)
}

// UpstreamOf reports which upstream failed, or "" if err is not tagged.
func UpstreamOf(err error) string {
	which, _ := FieldsOf(err)["upstream"].(string)
	return which
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthenticated(err), IsNotFound(err):
		return http.StatusUnauthorized
	case IsQuotaExceeded(err):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to a client for err.
func PublicMessage(err error) string {
	switch {
	case IsInvalidInput(err):
		return "Question must not be empty"
	case IsUnauthenticated(err), IsNotFound(err):
		return "Unauthorized"
	case IsQuotaExceeded(err):
		return "Daily limit reached. Please upgrade."
	default:
		return "Internal Server Error"
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeInternal).Wrap(joined)
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
