package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/config"
	"github.com/goliatone/go-auth-sync/identity/httpserver"
	"github.com/goliatone/go-auth-sync/identity/local"
	"github.com/goliatone/go-auth-sync/store/sqlstore"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "identityd",
	Short:         "Serve password authentication and account creation over HTTP",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfgFile, authsync.DefaultLogger())
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml or toml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		authsync.DefaultLogger().Error("identityd: %v", err)
		os.Exit(1)
	}
}

func run(cfgFile string, logger authsync.Logger) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.OpenSQLite(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	directory := local.NewDirectory(db, cfg,
		local.WithHashCost(cfg.HashCost),
		local.WithHashid(cfg.UseHashid),
		local.WithLogger(logger),
	)

	if err := directory.Migrate(ctx); err != nil {
		return err
	}

	srv := httpserver.New(directory,
		httpserver.WithLogger(logger),
		httpserver.WithCollection(cfg.Collection),
		httpserver.WithRateLimit(cfg.RateLimit, time.Minute),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Listen(cfg.ListenAddr)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
