package keynotify

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const pathNotifySettings = "/api/v1/me/notify-settings/"

// NotifyType is the delivery channel for keyword notifications.
type NotifyType string

const (
	NotifyEmail NotifyType = "email"
	// NotifyTelegram is declared by the API but not offered yet.
	NotifyTelegram NotifyType = "telegram"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NotifySettings is the user's notification configuration.
type NotifySettings struct {
	NotifyType   NotifyType `json:"notify_type"`
	EmailAddress string     `json:"email_address"`
	Keywords     []string   `json:"keywords"`
	UpdatedAt    *string    `json:"updated_at,omitempty"`
}

// Normalize trims the email address and keywords, drops blank keywords and
// removes duplicates while keeping first-seen order.
func (s *NotifySettings) Normalize() {
	s.NotifyType = NotifyType(strings.ToLower(strings.TrimSpace(string(s.NotifyType))))
	s.EmailAddress = strings.TrimSpace(s.EmailAddress)

	seen := make(map[string]struct{}, len(s.Keywords))
	out := make([]string, 0, len(s.Keywords))
	for _, kw := range s.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	s.Keywords = out
}

// Validate checks settings before they are written.
func (s NotifySettings) Validate() error {
	switch s.NotifyType {
	case NotifyEmail:
		if strings.TrimSpace(s.EmailAddress) == "" {
			return ErrEmailRequired
		}
		if !emailPattern.MatchString(strings.TrimSpace(s.EmailAddress)) {
			return ErrInvalidEmail
		}
		return nil
	case NotifyTelegram:
		return fmt.Errorf("%w: %s", ErrNotifyTypeDisabled, s.NotifyType)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNotifyType, s.NotifyType)
	}
}

// GetNotifySettings fetches the current settings.
func (c *Client) GetNotifySettings(ctx context.Context) (*NotifySettings, error) {
	var out NotifySettings
	if err := c.Send(ctx, http.MethodGet, pathNotifySettings, Request{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNotifySettings normalizes, validates and creates settings.
func (c *Client) CreateNotifySettings(ctx context.Context, s NotifySettings) (*NotifySettings, error) {
	return c.writeNotifySettings(ctx, http.MethodPost, s)
}

// UpdateNotifySettings normalizes, validates and replaces settings.
func (c *Client) UpdateNotifySettings(ctx context.Context, s NotifySettings) (*NotifySettings, error) {
	return c.writeNotifySettings(ctx, http.MethodPut, s)
}

func (c *Client) writeNotifySettings(ctx context.Context, method string, s NotifySettings) (*NotifySettings, error) {
	s.Normalize()
	s.UpdatedAt = nil
	if err := s.Validate(); err != nil {
		c.emitAudit(ctx, AuditEvent{Type: auditEventSettingsRejected, Error: err.Error()})
		return nil, validationError(err)
	}

	out := s
	if err := c.Send(ctx, method, pathNotifySettings, Request{Body: s}, &out); err != nil {
		c.emitAudit(ctx, AuditEvent{Type: auditEventSettingsRejected, Error: auditErr(err)})
		return nil, err
	}
	c.emitAudit(ctx, AuditEvent{
		Type:     auditEventSettingsSaved,
		Success:  true,
		Metadata: map[string]string{"method": method, "notify_type": string(s.NotifyType)},
	})
	return &out, nil
}
