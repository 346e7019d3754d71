package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/gameflow/pkg/api/handlers"
	"github.com/cbodonnell/gameflow/pkg/api/middleware"
	authproviders "github.com/cbodonnell/gameflow/pkg/auth/providers"
	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port int
	TLS  *TLSConfig
	// AuthProvider is optional. When nil the session endpoints are open.
	AuthProvider authproviders.AuthProvider
	Controller   handlers.SessionController
	Statistics   handlers.StatisticsReader
}

// NewAPIServer creates a new http.Server for the session control API
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the API routes.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.NewCORSMiddleware())
	r.HandleFunc("/healthz", handlers.HandleHealth()).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	if opts.AuthProvider != nil {
		protected.Use(middleware.NewAuthMiddleware(opts.AuthProvider))
	}

	c := opts.Controller
	protected.HandleFunc("/session", handlers.HandleGetSession(c)).Methods(http.MethodGet, http.MethodOptions)
	actions := map[string]handlers.Action{
		"play":     c.StartNewGame,
		"pause":    c.PauseGame,
		"resume":   c.ResumeGame,
		"gameover": c.RunGameOver,
		"restart":  c.RestartGame,
		"quit":     c.QuitGame,
		"menu":     c.GoToMainMenu,
	}
	for name, action := range actions {
		protected.HandleFunc("/session/"+name, handlers.HandleAction(name, action, c)).Methods(http.MethodPost, http.MethodOptions)
	}
	protected.HandleFunc("/session/score", handlers.HandleAddScore(c)).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/session/character-dead", handlers.HandleCharacterDead(c)).Methods(http.MethodPost, http.MethodOptions)

	if opts.Statistics != nil {
		protected.HandleFunc("/statistics", handlers.HandleGetStatistics(opts.Statistics)).Methods(http.MethodGet, http.MethodOptions)
		protected.HandleFunc("/sessions", handlers.HandleListSessions(opts.Statistics)).Methods(http.MethodGet, http.MethodOptions)
	}

	return r
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
