package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"

	identity "github.com/goliatone/go-identity"
)

func main() {
	cfg, err := identity.LoadConfig()
	if err != nil {
		glog.NewLogger(glog.WithName("identityd")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level := glog.Info
	if cfg.IsDevelopment() {
		level = glog.Trace
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("identityd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	if err := run(cfg, lgr); err != nil {
		lgr.Error("identityd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *identity.Config, lgr *glog.BaseLogger) error {
	db, err := identity.OpenDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := identity.CreateSchema(ctx, db); err != nil {
		cancel()
		return err
	}
	cancel()

	repo := identity.NewRepositoryManager(db)

	auth := identity.NewAuthenticator(repo, cfg).
		WithLogger(lgr.GetLogger("auth"))

	srv := identity.NewServer(cfg, auth, repo,
		identity.WithServerLogger(lgr.GetLogger("http")),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		lgr.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
