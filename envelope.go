package keynotify

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is the response wrapper used by the API.
type Envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	ErrorCode ErrorCode       `json:"error_code"`
	Errors    json.RawMessage `json:"errors"`
	Timestamp *string         `json:"timestamp"`
	Token     json.RawMessage `json:"token,omitempty"`

	// Code and Msg are the older {code, msg} failure fields some endpoints
	// still send. A truthy Code fails the envelope like ErrorCode does.
	Code ErrorCode `json:"code"`
	Msg  string    `json:"msg"`

	// raw is the full response body.
	raw []byte
}

// Failed reports whether the envelope signals an application-level failure.
func (e *Envelope) Failed() bool {
	return e != nil && (e.ErrorCode.Truthy() || e.Code.Truthy())
}

// FailureCode returns error_code, or the legacy code when error_code is unset.
func (e *Envelope) FailureCode() string {
	if e == nil {
		return ""
	}
	if e.ErrorCode.Truthy() {
		return strings.TrimSpace(string(e.ErrorCode))
	}
	if e.Code.Truthy() {
		return strings.TrimSpace(string(e.Code))
	}
	return strings.TrimSpace(string(e.ErrorCode))
}

// FailureMessage returns message, or the legacy msg when message is empty.
func (e *Envelope) FailureMessage() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

// HasData reports whether the envelope carried a non-null data member.
func (e *Envelope) HasData() bool {
	return e != nil && len(e.Data) > 0 && !bytes.Equal(bytes.TrimSpace(e.Data), []byte("null"))
}

// Payload returns data when present, else the whole body. Endpoints that do
// not wrap their result in an envelope resolve to their body.
func (e *Envelope) Payload() json.RawMessage {
	if e.HasData() {
		return e.Data
	}
	if e.Data != nil {
		// explicit "data": null
		return nil
	}
	return e.raw
}

func decodeEnvelope(body []byte) (*Envelope, error) {
	env := &Envelope{raw: body}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return env, nil
	}
	if trimmed[0] != '{' {
		// Bare arrays and scalars are payloads without an envelope.
		env.raw = trimmed
		return env, nil
	}
	if err := json.Unmarshal(trimmed, env); err != nil {
		return nil, err
	}
	env.raw = trimmed
	return env, nil
}

// ErrorCode is the envelope error_code. Servers send it as a string, a number
// or null.
type ErrorCode string

// Truthy mirrors the API contract: a non-empty code other than "0" is a failure.
func (c ErrorCode) Truthy() bool {
	s := strings.TrimSpace(string(c))
	return s != "" && s != "0" && s != "false"
}

func (c *ErrorCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*c = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ErrorCode(s)
	case bytes.Equal(b, []byte("true")), bytes.Equal(b, []byte("false")):
		*c = ErrorCode(b)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*c = ErrorCode(n.String())
	}
	return nil
}

// ID is an identifier the API sends either as a string or as a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}
