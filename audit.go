package keynotify

import (
	"context"
	"io"

	"github.com/MrEthical07/keynotify/internal/audit"
)

// AuditEvent is one session lifecycle record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

const (
	auditEventLogin            = "login"
	auditEventLoginFailure     = "login_failure"
	auditEventLogout           = "logout"
	auditEventRevoked          = "session_revoked"
	auditEventVerifyStart      = "verify_start"
	auditEventVerifySuccess    = "verify_success"
	auditEventVerifyRejected   = "verify_rejected"
	auditEventVerifyDegraded   = "verify_degraded"
	auditEventVerifyNoToken    = "verify_no_token"
	auditEventSettingsSaved    = "notify_settings_saved"
	auditEventSettingsRejected = "notify_settings_rejected"
)

func (c *Client) emitAudit(ctx context.Context, event AuditEvent) {
	if c == nil || c.audit == nil {
		return
	}
	c.audit.Emit(ctx, event)
}

func auditErr(err error) string {
	if err == nil {
		return ""
	}
	return KindOf(err).String() + ": " + Message(err)
}
