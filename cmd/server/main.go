package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/netvista/portal-auth/auth"
	"github.com/netvista/portal-auth/internal/bootstrap"
	"github.com/netvista/portal-auth/internal/config"
	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/server"
	"github.com/netvista/portal-auth/sessions"
	"github.com/netvista/portal-auth/sessions/redisrepo"
	"github.com/netvista/portal-auth/token"
	"github.com/netvista/portal-auth/token/refresh"
	"github.com/netvista/portal-auth/users/sqliterepo"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	displayAppname(cfg.AppName)

	userRepo, err := sqliterepo.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open user directory: %w", err)
	}
	defer userRepo.Close()

	if cfg.SeedUsers {
		if err := bootstrap.SeedUsers(userRepo); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}

	sessionRepo := newSessionRepo(cfg)
	tokenManager := token.New(
		refresh.NewInMemoryRepo(),
		token.NewHMACSigner(cfg.TokenSecret),
		token.WithIssuer(cfg.TokenIssuer),
	)

	service, err := auth.NewSessionService(
		auth.Repos{Users: userRepo, Sessions: sessionRepo},
		tokenManager,
		portals.NewRegistry(portals.Defaults()...),
	)
	if err != nil {
		return fmt.Errorf("auth.NewSessionService: %w", err)
	}

	srv, err := server.New(cfg, service, userRepo)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	stopSweeper := startSessionSweeper(service, cfg.SweepInterval())
	defer stopSweeper()

	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func newSessionRepo(cfg *config.Config) sessions.Repo {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("using in-memory session store; sessions will not survive restarts")
		return sessions.NewInMemoryRepo()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.Info().Str("addr", cfg.RedisAddr).Msg("using redis session store")
	return redisrepo.New(client)
}

// startSessionSweeper periodically removes expired and invalidated sessions.
func startSessionSweeper(service *auth.SessionService, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				removed, err := service.SweepExpiredSessions()
				if err != nil {
					log.Error().Err(err).Msg("session sweep failed")
				} else if removed > 0 {
					log.Info().Int("removed", removed).Msg("swept expired sessions")
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
