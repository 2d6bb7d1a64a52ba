package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/config"
	httpapi "github.com/tbourn/go-helpdesk-backend/internal/http"
	"github.com/tbourn/go-helpdesk-backend/internal/observability"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/seed"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
	"github.com/tbourn/go-helpdesk-backend/internal/sysutil"
)

const (
	shutdownTimeout = 30 * time.Second
	janitorEvery    = 10 * time.Minute
)

func newServeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Migrates the database, seeds it when empty and SEED_ON_START is set, then serves the API until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, sysutil.Version(g.version))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, version string) error {
	logger := log.With().Str("version", version).Logger()
	if cfg.UsesDevSecret() {
		logger.Warn().Msg("JWT_SECRET is unset; using the development signing key")
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	if cfg.SeedOnStart {
		if err := seedDefault(ctx, db, cfg.Auth.BcryptCost); err != nil {
			return err
		}
	}

	svc, err := httpapi.NewServices(db, cfg)
	if err != nil {
		return fmt.Errorf("services: %w", err)
	}

	gin.SetMode(cfg.GinMode)
	gin.DefaultWriter = io.Discard
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	jctx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go janitor(jctx, db, svc.Auth, janitorEvery)

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("db", cfg.DBPath).Str("mode", cfg.GinMode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return err
	}
	logger.Info().Msg("server exited gracefully")
	return nil
}

// seedDefault loads the embedded data set into an empty database.
func seedDefault(ctx context.Context, db *gorm.DB, cost int) error {
	f, err := seed.Default()
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, db, f, seed.Options{BcryptCost: cost})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if !res.Skipped {
		log.Info().Int("users", res.Users).Int("reports", res.Reports).Int("faqs", res.FAQs).Msg("database seeded")
	}
	return nil
}

// sessionPurger is the part of AuthService the janitor needs.
type sessionPurger interface {
	PurgeSessions(ctx context.Context) (int64, error)
}

// janitor removes expired sessions and idempotency records until ctx ends.
func janitor(ctx context.Context, db *gorm.DB, auth sessionPurger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweep(ctx, db, auth)
		}
	}
}

func sweep(ctx context.Context, db *gorm.DB, auth sessionPurger) {
	sessions, err := auth.PurgeSessions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("purge sessions")
	}
	keys, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
	if err != nil {
		log.Warn().Err(err).Msg("purge idempotency")
	}
	if sessions > 0 || keys > 0 {
		log.Debug().Int64("sessions", sessions).Int64("idempotency_keys", keys).Msg("janitor sweep")
	}
}

var _ sessionPurger = (*services.AuthService)(nil)
