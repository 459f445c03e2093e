package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/keynotify"
	"github.com/MrEthical07/keynotify/basedata"
	"github.com/MrEthical07/keynotify/loginflow"
)

const maxFormBytes = 64 << 10

type loginView struct {
	View          string `json:"view"`
	Username      string `json:"username"`
	InviteEnabled bool   `json:"invite_enabled"`
	Checking      bool   `json:"checking"`
	Registered    *bool  `json:"registered"`
}

type homeView struct {
	View     string          `json:"view"`
	User     *keynotify.User `json:"user"`
	Degraded bool            `json:"degraded"`
}

type loginForm struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	InviteCode string `json:"invite_code"`
	Remember   bool   `json:"remember"`
}

type redirectBody struct {
	Redirect string `json:"redirect"`
}

type errorBody struct {
	Message string          `json:"message"`
	Code    string          `json:"code,omitempty"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

type baseView struct {
	Status basedata.Status      `json:"status"`
	Items  []keynotify.BaseItem `json:"items"`
	Error  string               `json:"error,omitempty"`
}

func (s *Server) handleLoginView(w http.ResponseWriter, r *http.Request) {
	s.Navigate(keynotify.LoginPath)
	writeJSON(w, http.StatusOK, toLoginView(s.flow.Snapshot()))
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	s.flow.SetUsername(r.URL.Query().Get("username"))
	writeJSON(w, http.StatusAccepted, toLoginView(s.flow.Snapshot()))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if !decodeBody(w, r, &form) {
		return
	}
	err := s.flow.Submit(r.Context(), loginflow.Form{
		Username:   form.Username,
		Password:   form.Password,
		InviteCode: form.InviteCode,
		Remember:   form.Remember,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Navigate(keynotify.HomePath)
	writeJSON(w, http.StatusOK, redirectBody{Redirect: keynotify.HomePath})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Session().Logout(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "logout left stored credentials behind", "error", err)
	}
	s.base.Clear()
	s.Navigate(keynotify.LoginPath)
	writeJSON(w, http.StatusOK, redirectBody{Redirect: keynotify.LoginPath})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.Navigate(keynotify.HomePath)
	user, err := s.client.Me(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, homeView{
		View:     "home",
		User:     user,
		Degraded: s.client.State().Degraded,
	})
}

func (s *Server) handleBase(w http.ResponseWriter, r *http.Request) {
	params := make(map[string]any, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			params[k] = v[0]
		} else {
			params[k] = v
		}
	}
	st, err := s.base.Load(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, baseView{Status: st.Status, Items: st.Items, Error: st.Error})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.client.GetNotifySettings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleCreateSettings(w http.ResponseWriter, r *http.Request) {
	var in keynotify.NotifySettings
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := s.client.CreateNotifySettings(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in keynotify.NotifySettings
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := s.client.UpdateNotifySettings(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps a client error to a response. A 401 from the API has
// already revoked the session, so the caller is sent to the login view.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *keynotify.APIError
	if !errors.As(err, &apiErr) {
		s.logger.ErrorContext(r.Context(), "dashboard request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: err.Error()})
		return
	}

	body := errorBody{Message: apiErr.Error(), Code: apiErr.Code, Errors: apiErr.Errors}
	switch apiErr.Kind {
	case keynotify.KindValidation:
		writeJSON(w, http.StatusBadRequest, body)
	case keynotify.KindAuthentication:
		writeJSON(w, http.StatusUnauthorized, redirectBody{Redirect: keynotify.LoginPath})
	case keynotify.KindClient:
		status := apiErr.Status
		if status < 400 || status > 499 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, body)
	case keynotify.KindEnvelope:
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		writeJSON(w, http.StatusBadGateway, body)
	}
}

func toLoginView(snap loginflow.Snapshot) loginView {
	return loginView{
		View:          "login",
		Username:      snap.Username,
		InviteEnabled: snap.InviteEnabled,
		Checking:      snap.Checking,
		Registered:    snap.Registered,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFormBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
