// Package apperr holds the error taxonomy shared by clients, services and
// handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindDuplicate     Kind = "duplicate"
	KindUpstream      Kind = "upstream"
	KindParse         Kind = "parse"
	KindConfiguration Kind = "configuration"
	KindStorage       Kind = "storage"
)

// Service names the external dependency an error came from.
type Service string

const (
	ServiceGitHub  Service = "github"
	ServiceJira    Service = "jira"
	ServiceClaude  Service = "claude"
	ServiceGemini  Service = "gemini"
	ServiceStorage Service = "storage"
)

type Error struct {
	Kind    Kind
	Service Service
	// StatusCode is the upstream HTTP status, 0 when the call never got a
	// response.
	StatusCode int
	// Auth is set for credential failures reported by an upstream.
	Auth    bool
	Message string
	// Sample is a truncated copy of an unparseable upstream payload.
	Sample string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Duplicate(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

func Configuration(service Service, format string, args ...any) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Service: service,
		Message: fmt.Sprintf(format, args...),
	}
}

func Upstream(service Service, status int, message string, err error) *Error {
	return &Error{
		Kind:       KindUpstream,
		Service:    service,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

func Parse(service Service, message, sample string, err error) *Error {
	return &Error{
		Kind:    KindParse,
		Service: service,
		Message: message,
		Sample:  sample,
		Err:     err,
	}
}

func Storage(message string, err error) *Error {
	return &Error{
		Kind:    KindStorage,
		Service: ServiceStorage,
		Message: message,
		Err:     err,
	}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned to API callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	case KindUpstream, KindParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether a failed outbound call is worth repeating.
// Parse failures, validation failures and credential errors are final;
// upstream failures are retried on network errors, 408, 429 and 5xx.
func IsRetryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return true
	}
	switch e.Kind {
	case KindParse, KindValidation, KindConfiguration, KindNotFound, KindDuplicate:
		return false
	case KindUpstream:
		if e.Auth {
			return false
		}
		switch {
		case e.StatusCode == 0:
			return true
		case e.StatusCode == http.StatusRequestTimeout,
			e.StatusCode == http.StatusTooManyRequests,
			e.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}
