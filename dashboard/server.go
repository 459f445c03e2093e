package dashboard

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/keynotify"
	"github.com/MrEthical07/keynotify/basedata"
	"github.com/MrEthical07/keynotify/internal/logging"
	"github.com/MrEthical07/keynotify/loginflow"
	"github.com/MrEthical07/keynotify/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Server is the dashboard. It is safe for concurrent use.
type Server struct {
	client *keynotify.Client
	flow   *loginflow.Flow
	base   *basedata.Loader
	logger *slog.Logger
	router chi.Router

	mu          sync.Mutex
	current     string
	unsubscribe func()
}

// New builds a dashboard over client and registers it as the client's navigator.
func New(client *keynotify.Client) *Server {
	s := &Server{
		client:  client,
		flow:    loginflow.New(client),
		base:    basedata.NewLoader(client),
		logger:  client.Logger().With("component", "dashboard"),
		current: keynotify.HomePath,
	}
	if !client.State().Authenticated() {
		s.current = keynotify.LoginPath
	}
	s.unsubscribe = client.Session().Subscribe(s.follow)
	client.SetNavigator(s)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.With(middleware.RedirectIfAuthenticated(s.client, keynotify.HomePath)).Get("/login", s.handleLoginView)
	r.Post("/login", s.handleLogin)
	r.Get("/api/check-status", s.handleCheckStatus)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(s.client, keynotify.LoginPath))
		r.Get("/", s.handleHome)
		r.Get("/home", s.handleHome)
		r.Get("/base", s.handleBase)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleCreateSettings)
		r.Put("/settings", s.handleUpdateSettings)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// CurrentPath implements keynotify.Navigator.
func (s *Server) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Navigate implements keynotify.Navigator.
func (s *Server) Navigate(path string) {
	s.mu.Lock()
	from := s.current
	s.current = path
	s.mu.Unlock()
	if from != path {
		s.logger.Info("view changed", "from", from, "to", path)
	}
}

// follow moves the view off the login page once the session settles as
// authenticated. Leaving for the login page is driven by logout and the
// transport's 401 handling, which navigate explicitly.
func (s *Server) follow(state keynotify.SessionState) {
	if state.Authenticated() && s.CurrentPath() == keynotify.LoginPath {
		s.Navigate(keynotify.HomePath)
	}
}

// Close stops pending username checks and the session subscription.
func (s *Server) Close() {
	s.unsubscribe()
	s.flow.Close()
}

// requestLogger copies chi's request id into the outgoing API context so both
// sides of a call log the same id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if id := chimw.GetReqID(ctx); id != "" {
			ctx = logging.WithRequestID(ctx, id)
		}
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.logger.DebugContext(ctx, "dashboard request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
