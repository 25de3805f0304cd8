package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	errorutils "github.com/folioshop/storefront/libs/errors"
	"github.com/folioshop/storefront/libs/requestutils"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// AppError is error type for json HTTP responses
type AppError struct {
	Cause   error       `json:"-"`
	Success *bool       `json:"success,omitempty"` // set on endpoints whose bodies always carry success
	Message string      `json:"error"`             // description of failure
	Details string      `json:"details,omitempty"` // operator hint
	Debug   interface{} `json:"debug,omitempty"`   // application specific data
	Code    int         `json:"-"`
}

// Error makes app error an error
func (e *AppError) Error() string {
	msg := "error: " + e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns the cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithSuccess marks the body with an explicit success flag
func (e *AppError) WithSuccess(success bool) *AppError {
	e.Success = &success
	return e
}

// ServeHTTP responds according to the passed AppError
func (e *AppError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(e.Code)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		panic(err)
	}
}

// WrapError with an additional message as an AppError
func WrapError(err error, msg string, passedCode int) *AppError {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		code := passedCode
		if code == 0 {
			code = http.StatusBadRequest
		}
		return &AppError{
			Cause:   err,
			Message: msg,
			Code:    code,
		}
	}
	code := appErr.Code
	if code == 0 {
		code = passedCode
	}
	if msg == "" {
		msg = appErr.Message
	}
	return &AppError{
		Cause:   appErr.Cause,
		Success: appErr.Success,
		Message: msg,
		Details: appErr.Details,
		Debug:   appErr.Debug,
		Code:    code,
	}
}

// StatusForKind maps a failure kind to the http status it surfaces as
func StatusForKind(kind errorutils.Kind) int {
	switch kind {
	case errorutils.ErrInvalidArgument, errorutils.ErrVerificationFailed:
		return http.StatusBadRequest
	case errorutils.ErrDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WrapFault converts a classified error into an AppError, keeping its message and data
func WrapFault(err error) *AppError {
	var f *errorutils.Fault
	if !errors.As(err, &f) {
		return WrapError(err, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}

	return &AppError{
		Cause:   err,
		Message: f.Error(),
		Debug:   f.Data,
		Code:    StatusForKind(f.Kind),
	}
}

// RenderContent based on the header
func RenderContent(ctx context.Context, v interface{}, w http.ResponseWriter, status int) *AppError {
	switch w.Header().Get("content-type") {
	case "application/json":
		var b bytes.Buffer

		if err := json.NewEncoder(&b).Encode(v); err != nil {
			return WrapError(err, "Error encoding JSON", http.StatusInternalServerError)
		}

		w.WriteHeader(status)
		if _, err := w.Write(b.Bytes()); err != nil {
			return WrapError(err, "Error writing a response", http.StatusInternalServerError)
		}
	}

	return nil
}

// ValidationError creates an error to communicate a bad request was formed
func ValidationError(message string, validationErrors interface{}) *AppError {
	result := &AppError{
		Message: message,
		Code:    http.StatusBadRequest,
	}
	if validationErrors != nil {
		result.Debug = map[string]interface{}{
			"validationErrors": validationErrors,
		}
	}

	return result
}

// AppHandler is an http.Handler with JSON requests / responses
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

// ServeHTTP responds via the passed handler and handles returned errors
func (fn AppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "*/*") || r.Header.Get("Accept") == "" {
		w.Header().Set("content-type", "application/json")
	} else {
		// we cannot supply the encoding the client is asking for
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if e := fn(w, r); e != nil {
		if e.Code >= 500 && e.Code <= 599 {
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTags(map[string]string{
					"reqID": requestutils.GetRequestID(r.Context()),
				})
				sentry.CaptureException(e)
			})
		}

		l := zerolog.Ctx(r.Context())
		l.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Err(e)
		})

		e.ServeHTTP(w, r)
	}
}
