package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storefront-bff/internal/api"
	"storefront-bff/internal/auth"
	"storefront-bff/internal/cache"
	"storefront-bff/internal/services"
	"storefront-bff/internal/session"
	"storefront-bff/internal/store"
	"storefront-bff/internal/storefront"
	"storefront-bff/internal/web"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (JSON API, pages, metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	slog.Info("Starting storefront", "port", cfg.HTTPPort, "backend", cfg.Backend.URL)

	redisClient, err := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		return err
	}
	defer redisClient.Close()
	slog.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	var approvals storefront.ApprovalStore
	if cfg.Database.DSN != "" {
		db, err := store.OpenPostgres(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			slog.Error("Failed to connect to Postgres", "error", err)
			return err
		}
		defer db.Close()
		approvals = store.NewApprovalRepo(db)
		slog.Info("Approvals stored in Postgres")
	} else {
		approvals = store.NewMemoryApprovals()
		slog.Warn("DATABASE_URL not set, approvals are kept in memory")
	}

	sf := storefront.New(services.NewServiceClient(cfg), redisClient, approvals, storefront.Options{
		ProductsTTL: cfg.Cache.ProductsTTL,
		FreightTTL:  cfg.Cache.FreightTTL,
		CEPTTL:      cfg.Cache.CEPTTL,
		OriginCEP:   cfg.Freight.OriginCEP,
	})
	sessions := session.NewStore(cfg.Cookies.Secret, cfg.Cookies.Secure, cfg.Cookies.MaxAge)
	authMW := auth.NewMiddleware(cfg.Auth.JWTSecret)

	pages, err := web.New(sf, sessions, authMW)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      api.NewRouter(api.NewHandler(sf, sessions, authMW, cfg), pages.Register),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown", "error", err)
		return err
	}
	return nil
}
