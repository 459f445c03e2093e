package keynotify

// Decision is what a protected view should do for a given session state.
type Decision uint8

const (
	// DecisionDefer means the session is still loading; render nothing yet.
	DecisionDefer Decision = iota
	// DecisionAllow means the protected content may be shown.
	DecisionAllow
	// DecisionRedirect means the caller must go to the login view.
	DecisionRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	default:
		return "defer"
	}
}

// StateSource is anything that reports a session state. *Session and
// *Client implement it.
type StateSource interface {
	State() SessionState
}

// Guard decides access to a protected view. It has no state of its own.
func Guard(state SessionState) Decision {
	switch {
	case state.Loading():
		return DecisionDefer
	case state.Authenticated():
		return DecisionAllow
	default:
		return DecisionRedirect
	}
}
