package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soaringjerry/Vigil/internal/api"
	"github.com/soaringjerry/Vigil/internal/config"
	"github.com/soaringjerry/Vigil/internal/db"
	"github.com/soaringjerry/Vigil/internal/middleware"
	"github.com/soaringjerry/Vigil/internal/notify"
	"github.com/soaringjerry/Vigil/internal/services"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, db.Options{
		Type:          cfg.Database.Type,
		URL:           cfg.Database.URL,
		MigrationsDir: cfg.Database.MigrationsDir,
	}, logger.Named("db"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("store close failed", zap.Error(cerr))
		}
	}()

	handler, err := buildHandler(cfg, store, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("vigil server listening", zap.String("addr", cfg.Addr), zap.String("database", cfg.Database.Type))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func buildHandler(c *config.Config, store api.Store, log *zap.Logger) (http.Handler, error) {
	policy, ok := services.ParseAdvancedPolicy(c.AdvancedPolicy)
	if !ok {
		return nil, fmt.Errorf("unknown advanced policy %q", c.AdvancedPolicy)
	}

	var notifier services.ResultNotifier
	switch c.Email.Provider {
	case "resend":
		notifier = notify.NewResendNotifier(notify.ResendConfig{
			APIKey:   c.Email.APIKey,
			From:     c.Email.From,
			Endpoint: c.Email.APIURL,
		}, log.Named("email"))
	default:
		notifier = notify.NewLogNotifier(log.Named("email"))
	}

	emails := services.NewEmailPolicy().
		WithDisposableDomains(c.Email.BlockedDomains...).
		WithConsumerDomains(c.Email.ConsumerDomains...)

	var dedup services.WelcomeDedup = services.NewMemoryDedup()
	if c.Welcome.Dedup == "store" {
		dedup = services.StoreDedup{Store: store}
	}

	rt := api.NewRouter(api.Deps{
		Store:          store,
		Auth:           middleware.NewAuthenticator(c.JWTSecretOrDev()),
		Notifier:       notifier,
		Logger:         log,
		SiteURL:        c.SiteURL,
		AdvancedPolicy: policy,
		TokenTTL:       c.Auth.TokenTTL,
		WelcomeDedup:   dedup,
		WelcomeWindow:  c.Welcome.Window,
		CORSOrigins:    c.CORSOrigins,
		EmailPolicy:    emails,
		Build:          buildInfo(),
	})
	return rt.Handler(), nil
}
