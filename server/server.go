package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/netvista/portal-auth/auth"
	"github.com/netvista/portal-auth/internal/config"
	"github.com/netvista/portal-auth/users"
	"github.com/rs/zerolog/log"
)

// Server is the HTTP surface over the session lifecycle service.
type Server struct {
	mux      *http.ServeMux
	routes   []string
	config   *config.Config
	auth     *auth.SessionService
	userRepo users.UserRepo
}

func New(cfg *config.Config, authService *auth.SessionService, userRepo users.UserRepo) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Server.New] config is required")
	}
	if authService == nil {
		return nil, fmt.Errorf("[Server.New] auth service is required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("[Server.New] user repo is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		auth:     authService,
		userRepo: userRepo,
	}
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.CSRFGuardMiddleware)...))
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteValidate, ChainMiddleware(s.ValidateHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteCSRF, ChainMiddleware(s.CSRFHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteProfile, ChainMiddleware(s.ProfileHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}

func (s *Server) logRoutes() {
	if s.config.IsProduction() {
		return // Skip route logging outside development
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}
