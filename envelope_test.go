package keynotify

import (
	"encoding/json"
	"testing"
)

func TestErrorCodeTruthy(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`null`, false},
		{`""`, false},
		{`"0"`, false},
		{`0`, false},
		{`false`, false},
		{`"TOKEN_INVALID"`, true},
		{`401`, true},
		{`true`, true},
	}
	for _, tc := range tests {
		var c ErrorCode
		if err := json.Unmarshal([]byte(tc.raw), &c); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if c.Truthy() != tc.want {
			t.Fatalf("%s: Truthy()=%v want %v", tc.raw, c.Truthy(), tc.want)
		}
	}
}

func TestEnvelopePayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "data object", body: `{"success":true,"data":{"a":1}}`, want: `{"a":1}`},
		{name: "explicit null", body: `{"success":true,"data":null}`, want: ``},
		{name: "no envelope", body: `{"items":[],"total":0}`, want: `{"items":[],"total":0}`},
		{name: "bare array", body: ` [1,2] `, want: `[1,2]`},
		{name: "empty body", body: ``, want: ``},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := decodeEnvelope([]byte(tc.body))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := string(env.Payload()); got != tc.want {
				t.Fatalf("expected payload %q, got %q", tc.want, got)
			}
		})
	}
}

func TestEnvelopeFailureFields(t *testing.T) {
	env, err := decodeEnvelope([]byte(`{"success":false,"message":"","msg":"old style","code":"7"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Failed() || env.FailureCode() != "7" || env.FailureMessage() != "old style" {
		t.Fatalf("unexpected failure fields code=%q msg=%q", env.FailureCode(), env.FailureMessage())
	}
}

func TestIDAcceptsStringOrNumber(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"x1","b":42,"c":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != "x1" || v.B != "42" || v.C != "" {
		t.Fatalf("unexpected ids %+v", v)
	}
}
