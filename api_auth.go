package keynotify

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	pathCheckStatus     = "/api/v1/users/check-status"
	pathLoginOrRegister = "/api/v1/auth/login-or-register"
	pathMe              = "/api/v1/users/me"
)

// UserStatus is the check-status result.
type UserStatus struct {
	IsRegistered bool `json:"isRegistered"`
}

// LoginOrRegisterRequest is the combined login-or-register body. A nil
// InviteCode is omitted.
type LoginOrRegisterRequest struct {
	Username   string  `json:"username"`
	Password   string  `json:"password"`
	InviteCode *string `json:"inviteCode,omitempty"`
}

// TokenPair is the credential issued by login-or-register.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the whoami record.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// CheckUserStatus reports whether username is already registered.
func (c *Client) CheckUserStatus(ctx context.Context, username string) (UserStatus, error) {
	var out UserStatus
	err := c.Send(ctx, http.MethodGet, pathCheckStatus, Request{
		Query: map[string]any{"username": username},
	}, &out)
	return out, err
}

// LoginOrRegister submits credentials and returns the issued token. It does
// not touch the session; callers pass the token to Session.Login.
//
// The token is read from the envelope data member, falling back to a
// top-level token member.
func (c *Client) LoginOrRegister(ctx context.Context, req LoginOrRegisterRequest) (TokenPair, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return TokenPair{}, validationError(ErrMissingFields)
	}

	env, err := c.Do(ctx, http.MethodPost, pathLoginOrRegister, Request{Body: req})
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return TokenPair{}, err
	}

	var pair TokenPair
	src := env.Data
	if !env.HasData() {
		src = env.Token
	}
	if len(src) > 0 {
		if err := json.Unmarshal(src, &pair); err != nil {
			c.metrics.Inc(MetricLoginFailure)
			return TokenPair{}, &APIError{Kind: KindEnvelope, Message: ErrMalformedResponse.Error(), Err: err}
		}
	}
	if pair.AccessToken == "" {
		c.metrics.Inc(MetricLoginFailure)
		return TokenPair{}, &APIError{
			Kind:    KindEnvelope,
			Message: firstNonEmpty(env.FailureMessage(), ErrMissingAccessToken.Error()),
			Err:     ErrMissingAccessToken,
		}
	}
	return pair, nil
}

// Me fetches the current user. It doubles as the stored token probe.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.Send(ctx, http.MethodGet, pathMe, Request{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
