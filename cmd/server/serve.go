package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/homebuild/internal/db"
	"github.com/Simplici0/homebuild/internal/ledger"
	"github.com/Simplici0/homebuild/internal/mailer"
	"github.com/Simplici0/homebuild/internal/metrics"
	"github.com/Simplici0/homebuild/internal/migrations"
	"github.com/Simplici0/homebuild/internal/reviews"
	"github.com/Simplici0/homebuild/internal/submission"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().String("port", "", "port to listen on (overrides PORT)")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	cfg.Warn(log)

	database, err := openDatabase(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	m := metrics.New()

	sender, err := mailer.New(ctx, cfg.Email)
	if err != nil {
		return err
	}

	gw := submission.NewGateway(sender, ledger.New(database), submission.Settings{
		SiteName:   cfg.SiteName,
		From:       cfg.Email.From,
		EstimateTo: cfg.Email.EstimateRecipients(),
		ContactTo:  cfg.Email.ContactRecipients(),
		CC:         cfg.Email.CC,
		BCC:        cfg.Email.BCC,
	}, log.Named("submission"), submission.WithMetrics(m))

	cache, closeCache, err := reviewCache()
	if err != nil {
		return err
	}
	defer closeCache()
	rv := reviews.NewService(reviews.NewGoogleProvider(cfg.Reviews), cache, log.Named("reviews"), m)

	sessions, err := newSessionCodec(cfg.SessionSecret, !cfg.IsDev())
	if err != nil {
		return err
	}

	s := &server{
		gateway:        gw,
		reviews:        rv,
		sessions:       sessions,
		metrics:        m,
		log:            log.Named("http"),
		allowedOrigins: cfg.CORS.AllowedOrigins,
		ping:           database.PingContext,
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("email_provider", sender.Name()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutdown")
	}
	return nil
}

func openDatabase(ctx context.Context, path string) (*sql.DB, error) {
	database, err := db.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, database); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// reviewCache picks Redis when REDIS_URL is set and memory otherwise.
func reviewCache() (reviews.Cache, func(), error) {
	if cfg.Reviews.RedisURL == "" {
		return reviews.NewMemoryCache(cfg.Reviews.CacheTTL, time.Now), func() {}, nil
	}

	rc, err := reviews.NewRedisCacheFromURL(cfg.Reviews.RedisURL, cfg.Reviews.CacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}, nil
}
