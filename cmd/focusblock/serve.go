package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "focusblock/internal/adapter/http"
	"focusblock/internal/adapter/memory"
	"focusblock/internal/adapter/postgres"
	"focusblock/internal/adapter/sqlite"
	"focusblock/internal/app"
	"focusblock/internal/config"
	"focusblock/internal/domain"
	"focusblock/internal/telemetry"

	"github.com/coreos/go-oidc/v3/oidc"
)

// store is implemented by every persistence adapter.
type store interface {
	domain.SessionRepository
	domain.ActivityRepository
	domain.StatsRepository
	Ping(ctx context.Context) error
	Close() error
}

func openStore(cfg config.Config) (store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateSecret(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, "focusblock", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() { _ = db.Close() }()
	log.Printf("using %s store", cfg.StoreDriver)

	authOpts := []app.AuthOption{
		app.WithIssuer(cfg.JWTIssuer),
		app.WithTokenTTL(cfg.TokenTTL),
		app.WithAdminGroup(cfg.AdminGroup),
	}
	if cfg.OIDCIssuer != "" {
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			return fmt.Errorf("oidc provider: %w", err)
		}
		authOpts = append(authOpts, app.WithOIDCVerifier(provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})))
		log.Printf("accepting OIDC tokens from %s", cfg.OIDCIssuer)
	}
	authSvc := app.NewAuthService([]byte(cfg.JWTSecret), authOpts...)

	recorder := app.NewActivityRecorder(db,
		app.WithQueueSize(cfg.ActivityQueueSize),
		app.WithWriteTimeout(cfg.ActivityWriteTimeout),
	)

	h := adapthttp.New(
		app.NewSessionService(db, recorder),
		app.NewActivityService(db),
		app.NewStatsService(db),
		authSvc,
		adapthttp.WithProduction(cfg.Production()),
		adapthttp.WithAllowedOrigins(cfg.AllowedOrigins...),
		adapthttp.WithForwardAuth(cfg.TrustForwardAuth),
		adapthttp.WithRecorderStats(recorder),
		adapthttp.WithStoreCheck(db),
	).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Printf("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := recorder.Close(sctx); err != nil {
		log.Printf("activity recorder: %v", err)
	}
	st := recorder.Stats()
	log.Printf("activity: %d written, %d failed, %d dropped", st.Written, st.Failed, st.Dropped)
	return nil
}
