package keynotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"testing"
)

func TestNotifySettingsValidate(t *testing.T) {
	tests := []struct {
		name string
		in   NotifySettings
		want error
	}{
		{name: "valid email", in: NotifySettings{NotifyType: NotifyEmail, EmailAddress: "a@b.co"}},
		{name: "missing email", in: NotifySettings{NotifyType: NotifyEmail}, want: ErrEmailRequired},
		{name: "blank email", in: NotifySettings{NotifyType: NotifyEmail, EmailAddress: "   "}, want: ErrEmailRequired},
		{name: "no at", in: NotifySettings{NotifyType: NotifyEmail, EmailAddress: "ab.co"}, want: ErrInvalidEmail},
		{name: "no dot", in: NotifySettings{NotifyType: NotifyEmail, EmailAddress: "a@bco"}, want: ErrInvalidEmail},
		{name: "space", in: NotifySettings{NotifyType: NotifyEmail, EmailAddress: "a b@c.co"}, want: ErrInvalidEmail},
		{name: "telegram disabled", in: NotifySettings{NotifyType: NotifyTelegram}, want: ErrNotifyTypeDisabled},
		{name: "unknown type", in: NotifySettings{NotifyType: "sms"}, want: ErrUnknownNotifyType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNotifySettingsNormalize(t *testing.T) {
	s := NotifySettings{
		NotifyType:   " EMAIL ",
		EmailAddress: "  me@example.com ",
		Keywords:     []string{" go ", "", "redis", "go", "  ", "redis ", "kafka"},
	}
	s.Normalize()

	if s.NotifyType != NotifyEmail || s.EmailAddress != "me@example.com" {
		t.Fatalf("unexpected normalized settings %+v", s)
	}
	want := []string{"go", "redis", "kafka"}
	if !reflect.DeepEqual(s.Keywords, want) {
		t.Fatalf("expected keywords %v, got %v", want, s.Keywords)
	}
}

func TestUpdateNotifySettingsSendsNormalizedBody(t *testing.T) {
	var got NotifySettings
	var method string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if r.URL.Path != pathNotifySettings {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		saved := got
		ts := "2026-01-02T03:04:05Z"
		saved.UpdatedAt = &ts
		writeJSON(w, http.StatusOK, okEnvelope(saved))
	})

	out, err := env.client.UpdateNotifySettings(context.Background(), NotifySettings{
		NotifyType:   NotifyEmail,
		EmailAddress: " me@example.com",
		Keywords:     []string{"a", "a", " b "},
	})
	if err != nil {
		t.Fatalf("UpdateNotifySettings failed: %v", err)
	}
	if method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", method)
	}
	if !reflect.DeepEqual(got.Keywords, []string{"a", "b"}) || got.EmailAddress != "me@example.com" {
		t.Fatalf("expected normalized body, got %+v", got)
	}
	if out.UpdatedAt == nil || *out.UpdatedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("expected server updated_at, got %+v", out)
	}
}

func TestCreateNotifySettingsValidatesLocally(t *testing.T) {
	env := newTestEnv(t, noServer(t))

	_, err := env.client.CreateNotifySettings(context.Background(), NotifySettings{
		NotifyType:   NotifyEmail,
		EmailAddress: "not-an-email",
	})
	if KindOf(err) != KindValidation || !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected local validation error, got %v", err)
	}
	if env.hits.Load() != 0 {
		t.Fatal("validation failure must not reach the server")
	}
}

func TestGetNotifySettings(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, okEnvelope(map[string]any{
			"notify_type":   "email",
			"email_address": "x@y.z",
			"keywords":      []string{"k1"},
			"updated_at":    nil,
		}))
	})

	s, err := env.client.GetNotifySettings(context.Background())
	if err != nil {
		t.Fatalf("GetNotifySettings failed: %v", err)
	}
	if s.NotifyType != NotifyEmail || s.EmailAddress != "x@y.z" || len(s.Keywords) != 1 {
		t.Fatalf("unexpected settings %+v", s)
	}
}
