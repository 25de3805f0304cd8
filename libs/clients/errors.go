package clients

import (
	"errors"

	errorutils "github.com/folioshop/storefront/libs/errors"
)

const (
	// ErrUnableToDecode unable to decode body
	ErrUnableToDecode = "unable to decode response"
	// ErrProtocolError the error was within the data that went into the endpoint
	ErrProtocolError = "protocol error"
	// ErrUnableToEscapeURL the url could nto be escaped
	ErrUnableToEscapeURL = "unable to escape url"
	// ErrInvalidHost the host was invalid
	ErrInvalidHost = "invalid host"
	// ErrMalformedRequest the request was malformed
	ErrMalformedRequest = "malformed request"
	// ErrUnableToEncodeBody body could not be decoded
	ErrUnableToEncodeBody = "unable to encode body"
)

// HTTPState captures the state of the response to be read by lower fns in the stack
type HTTPState struct {
	Status int
	Path   string
	Body   interface{}
}

// NewHTTPError creates a new errors.ErrorBundle with an HTTPState wrapping the status, path and v.
func NewHTTPError(err error, path, message string, status int, v interface{}) error {
	return errorutils.New(err, message, HTTPState{
		Status: status,
		Path:   path,
		Body:   v,
	})
}

// HTTPStateOf returns the HTTPState carried by an error returned from the client
func HTTPStateOf(err error) (HTTPState, bool) {
	var eb *errorutils.ErrorBundle
	if !errors.As(err, &eb) {
		return HTTPState{}, false
	}
	state, ok := eb.Data().(HTTPState)
	return state, ok
}

// ResponseBodyOf returns the raw response body of a failed call, when there was one
func ResponseBodyOf(err error) (string, bool) {
	state, ok := HTTPStateOf(err)
	if !ok {
		return "", false
	}
	data, ok := state.Body.(RespErrData)
	if !ok {
		return "", false
	}
	body, ok := data.Body.(string)
	return body, ok
}
