// Package app assembles the auth service: configuration, storage, session
// store, signing keys, services and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authhttp "github.com/patronhq/patron/internal/auth/http"
	"github.com/patronhq/patron/internal/auth/mail"
	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/internal/auth/session"
	sessredis "github.com/patronhq/patron/internal/auth/session/redis"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/internal/auth/store/drivers/sqlite"
	"github.com/patronhq/patron/pkg/cryptox"
	"github.com/patronhq/patron/pkg/slogx"
)

// BuildVersion is stamped at build time via -ldflags.
var BuildVersion = "dev"

type Application struct {
	cfg    Config
	logger *slog.Logger

	store    store.Store
	sessions session.Store

	housekeeping *service.HousekeepingService

	router *authhttp.Router
	server *http.Server
}

func New(cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	a := &Application{cfg: cfg, logger: logger}

	if err := a.initStorage(); err != nil {
		return nil, err
	}
	if err := a.initHTTP(); err != nil {
		a.closeStorage()
		return nil, err
	}

	return a, nil
}

func (a *Application) initStorage() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", a.cfg.DatabaseFile)
	st, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}
	a.store = st

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessions, err := sessredis.Open(ctx, sessredis.Config{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPass,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("connect redis: %w", err)
	}
	a.sessions = sessions

	return nil
}

func (a *Application) initHTTP() error {
	signer, keys, verifier, err := initKeys(a.cfg)
	if err != nil {
		return err
	}

	if a.cfg.MasterKey == "" {
		if a.cfg.Env != "dev" {
			return fmt.Errorf("AUTH_MASTER_KEY is required outside dev")
		}
		a.logger.Warn("no master key configured, using insecure dev key")
		a.cfg.MasterKey = "insecure-dev-master-key"
	}
	secrets, err := cryptox.NewSecretBox([]byte(a.cfg.MasterKey))
	if err != nil {
		return fmt.Errorf("init secret box: %w", err)
	}

	var sender mail.Mailer
	if a.cfg.SMTPHost != "" {
		sender = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			Username: a.cfg.SMTPUser,
			Password: a.cfg.SMTPPass,
			From:     a.cfg.SMTPFrom,
		})
	} else {
		a.logger.Warn("no SMTP relay configured, mail goes to the log")
		sender = &mail.LogMailer{Log: a.logger}
	}

	tokens := &service.TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Sessions:   a.sessions,
		Store:      a.store,
		Issuer:     a.cfg.Issuer,
		AccessTTL:  a.cfg.AccessTTL,
		RefreshTTL: a.cfg.RefreshTTL,
	}

	router := authhttp.NewRouter(keys, verifier, BuildVersion, a.store, a.sessions, a.logger)
	router.TokenService = tokens
	router.UserService = &service.UserService{
		Store:    a.store,
		Sessions: a.sessions,
		Mailer:   sender,
		BaseURL:  a.cfg.BaseURL,
	}
	router.CredentialService = &service.CredentialService{
		Store:   a.store,
		Secrets: secrets,
	}
	router.PlanService = &service.PlanService{Store: a.store}
	router.MFAService = &service.MFAService{
		Store:    a.store,
		Sessions: a.sessions,
		Tokens:   tokens,
		Issuer:   a.cfg.Issuer,
	}
	router.ApplyRoutes()
	a.router = router

	a.housekeeping = &service.HousekeepingService{
		Store:     a.store,
		Log:       a.logger,
		Interval:  a.cfg.HousekeepingInterval,
		Retention: a.cfg.CredentialRetention,
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

// Handler exposes the root handler for in-process tests.
func (a *Application) Handler() http.Handler { return a.router }

// Run starts the HTTP server and the housekeeping loop, then blocks until a
// shutdown signal arrives or the server fails.
func (a *Application) Run() error {
	hkCtx, hkCancel := context.WithCancel(context.Background())
	defer hkCancel()
	go a.housekeeping.Run(hkCtx)

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		a.logger.Info("shutdown signal received", "signal", sig.String())
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests within the grace period and releases
// storage connections.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("graceful shutdown failed, forcing close", "error", err)
		_ = a.server.Close()
	}

	a.closeStorage()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *Application) closeStorage() {
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Error("closing session store", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("closing database", "error", err)
		}
	}
}
