package keynotify

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrClientNotReady is returned by methods called on a nil or unbuilt Client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrUnauthorized matches every KindAuthentication *APIError via errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransient matches every KindTransient *APIError via errors.Is.
	ErrTransient = errors.New("transient request failure")
	// ErrMalformedResponse is wrapped when a response body is not a decodable envelope.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingAccessToken is returned when a successful login response carries no token.
	ErrMissingAccessToken = errors.New("login response missing access token")
	// ErrEmptyToken is returned by Session.Login for an empty token.
	ErrEmptyToken = errors.New("empty token")
	// ErrMissingFields is returned when username or password is blank.
	ErrMissingFields = errors.New("username and password are required")
	// ErrEmailRequired is returned when email notification has no address.
	ErrEmailRequired = errors.New("email address required")
	// ErrInvalidEmail is returned for an address that does not look like an email.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrNotifyTypeDisabled is returned for notify types that are declared but not yet offered.
	ErrNotifyTypeDisabled = errors.New("notify type not available")
	// ErrUnknownNotifyType is returned for notify types the service does not know.
	ErrUnknownNotifyType = errors.New("unknown notify type")
	// ErrBaseURLRequired is returned by Build when no API base URL is configured.
	ErrBaseURLRequired = errors.New("base url required")
)

// Error codes the API uses in the envelope error_code field.
const (
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenExpired = "TOKEN_EXPIRED"
)

// ErrorKind classifies request failures. Session logic switches on the kind,
// never on messages or raw status codes.
type ErrorKind uint8

const (
	// KindUnknown is the zero value; no *APIError carries it.
	KindUnknown ErrorKind = iota
	// KindTransient covers network failures, timeouts and 5xx responses.
	KindTransient
	// KindAuthentication covers 401 responses.
	KindAuthentication
	// KindClient covers other 4xx responses.
	KindClient
	// KindEnvelope covers 2xx responses whose envelope carries an error code.
	KindEnvelope
	// KindValidation covers local input checks that never reach the network.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuthentication:
		return "authentication"
	case KindClient:
		return "client"
	case KindEnvelope:
		return "envelope"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// APIError is the normalized failure returned by every Client call.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Errors  json.RawMessage
	// Retries is how many times the request was re-sent before giving up.
	Retries int
	// Timeout is set when the per-attempt deadline expired.
	Timeout bool
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" && e.Status != 0 {
		msg = http.StatusText(e.Status)
	}
	if msg == "" {
		msg = "request failed"
	}
	if e.Retries > 0 {
		msg = fmt.Sprintf("%s (after %d retries)", msg, e.Retries)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets callers test the kind with the ErrUnauthorized and ErrTransient sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindAuthentication
	case ErrTransient:
		return e.Kind == KindTransient
	}
	return false
}

// TokenRejected reports whether the server said the bearer token itself is
// invalid or expired.
func (e *APIError) TokenRejected() bool {
	if e == nil || e.Kind != KindAuthentication {
		return false
	}
	return e.Code == CodeTokenInvalid || e.Code == CodeTokenExpired
}

// KindOf returns the kind of err, or KindUnknown when err is not an *APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Message returns the user-facing message of err: the server message for an
// *APIError, err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func validationError(err error) *APIError {
	return &APIError{Kind: KindValidation, Message: err.Error(), Err: err}
}
